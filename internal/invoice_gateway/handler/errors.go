package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/invoice-ledger/internal/submitter"
)

// respondError maps ledger and submitter errors to HTTP responses. Anything
// that is not a verdict about the request is reported as the ledger being
// unavailable.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, submitter.ErrValidation):
		RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, invoice.ErrInvalidAmount):
		RespondWithError(c, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, reconciliation.ErrIncompleteSnapshot):
		RespondWithError(c, http.StatusBadGateway, "INCOMPLETE_SNAPSHOT", "Invoice history could not be reconciled with ledger state")
	case errors.Is(err, invoice.ErrNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, invoice.ErrDuplicateID{}):
		RespondWithError(c, http.StatusConflict, "DUPLICATE_ID", err.Error())
	case errors.Is(err, invoice.ErrAlreadyPaid{}):
		RespondWithError(c, http.StatusConflict, "ALREADY_PAID", err.Error())
	case errors.Is(err, invoice.ErrExpired{}):
		RespondWithError(c, http.StatusUnprocessableEntity, "EXPIRED", err.Error())
	case errors.Is(err, ledger.ErrTransferFailed):
		RespondWithError(c, http.StatusUnprocessableEntity, "TRANSFER_FAILED", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		RespondWithError(c, http.StatusGatewayTimeout, "TIMEOUT", "The ledger did not answer in time")
	default:
		RespondServiceUnavailable(c)
	}
}
