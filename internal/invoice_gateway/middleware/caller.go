package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/domain/invoice"
)

const (
	// CallerAddressHeader carries the account the request acts as
	CallerAddressHeader = "X-Caller-Address"
	// CallerKey is the key used to store the parsed caller in the context
	CallerKey = "caller_address"
)

// CallerIdentity parses the caller address when present. The header is trusted
// as is, so the gateway must sit behind a proxy that authenticates the client
// and sets it. Requests with a malformed address are rejected here; requests
// without one continue and are refused by handlers that need a caller.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CallerAddressHeader)
		if raw == "" {
			c.Next()
			return
		}

		caller, err := invoice.ParseAddress(raw)
		if err != nil || caller.IsZero() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid " + CallerAddressHeader + " header",
				},
				"correlation_id": GetCorrelationID(c),
			})
			return
		}

		c.Set(CallerKey, caller)
		c.Next()
	}
}

// GetCaller returns the authenticated caller, if any
func GetCaller(c *gin.Context) (invoice.Address, bool) {
	if v, exists := c.Get(CallerKey); exists {
		if caller, ok := v.(invoice.Address); ok {
			return caller, true
		}
	}
	return "", false
}
