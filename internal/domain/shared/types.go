package shared

// OperationKind names the ledger operations a caller can submit
type OperationKind string

const (
	OperationKindCreate  OperationKind = "CREATE"
	OperationKindPay     OperationKind = "PAY"
	OperationKindApprove OperationKind = "APPROVE"
	OperationKindMint    OperationKind = "MINT"
)

// Valid reports whether the kind is one the ledger node executes
func (k OperationKind) Valid() bool {
	switch k {
	case OperationKindCreate, OperationKindPay, OperationKindApprove, OperationKindMint:
		return true
	}
	return false
}

// ReceiptStatus is the lifecycle state of a submitted operation
type ReceiptStatus string

const (
	ReceiptStatusSubmitted ReceiptStatus = "SUBMITTED"
	ReceiptStatusConfirmed ReceiptStatus = "CONFIRMED"
	ReceiptStatusFailed    ReceiptStatus = "FAILED"
)

// Terminal reports whether no further transition can happen
func (s ReceiptStatus) Terminal() bool {
	return s == ReceiptStatusConfirmed || s == ReceiptStatusFailed
}

// FailureReason classifies why an operation was rejected by the ledger
type FailureReason string

const (
	FailureReasonDuplicateID      FailureReason = "DUPLICATE_ID"
	FailureReasonInvalidAmount    FailureReason = "INVALID_AMOUNT"
	FailureReasonNotFound         FailureReason = "NOT_FOUND"
	FailureReasonAlreadyPaid      FailureReason = "ALREADY_PAID"
	FailureReasonExpired          FailureReason = "EXPIRED"
	FailureReasonTransferFailed   FailureReason = "TRANSFER_FAILED"
	FailureReasonUnauthorized     FailureReason = "UNAUTHORIZED"
	FailureReasonInvalidOperation FailureReason = "INVALID_OPERATION"
	FailureReasonUnknownError     FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines history publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
