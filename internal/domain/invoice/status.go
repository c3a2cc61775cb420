package invoice

import "time"

// Status is the lifecycle classification of an invoice at a point in time
type Status string

const (
	StatusNotFound Status = "NOT_FOUND"
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusExpired  Status = "EXPIRED"
)

// DeriveStatus classifies a point-read snapshot. A nil invoice means the read
// found no record. Paid wins over Expired: expiry only gates paying.
func DeriveStatus(inv *Invoice, now time.Time) Status {
	if inv == nil {
		return StatusNotFound
	}
	if inv.Paid {
		return StatusPaid
	}
	if inv.ExpiredAt(UnixSeconds(now)) {
		return StatusExpired
	}
	return StatusPending
}

// UnixSeconds converts wall-clock time to the ledger's timestamp unit
func UnixSeconds(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
