package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/invoice_gateway/middleware"
)

// ledgerRetryAfter is the hint sent with 503s; the node usually recovers
// within one outbox polling interval
const ledgerRetryAfter = 5 * time.Second

// Response is the envelope every endpoint answers with
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes list responses. History is rescanned per request, so
// there is no cursor to hand back.
type MetaInfo struct {
	TotalItems int    `json:"total_items"`
	AsOf       string `json:"as_of,omitempty"`
}

func respond(c *gin.Context, statusCode int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithData sends data under the given status
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	respond(c, statusCode, &Response{Data: data})
}

// RespondWithList sends a JSON list with its count
func RespondWithList(c *gin.Context, data interface{}, totalItems int, asOf string) {
	respond(c, http.StatusOK, &Response{
		Data: data,
		Meta: &MetaInfo{TotalItems: totalItems, AsOf: asOf},
	})
}

func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	respond(c, statusCode, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondSubmitted answers 202 and points Location at the operation's receipt
func RespondSubmitted(c *gin.Context, submission SubmissionResponse) {
	c.Header("Location", "/api/v1/operations/"+submission.OperationID)
	RespondWithData(c, http.StatusAccepted, submission)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func RespondNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondServiceUnavailable sends a 503 when the ledger cannot be reached
func RespondServiceUnavailable(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(int(ledgerRetryAfter.Seconds())))
	RespondWithError(c, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "The ledger is temporarily unavailable")
}
