package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	instrumentdomain "github.com/smallbiznis/payflow/internal/instrument/domain"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware translates domain errors collected on the gin
// context into JSON responses. Handlers report errors via AbortWithError and
// never write error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isInvariantError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invariant_violation",
			Message: err.Error(),
		}
	case isBadRequestError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_declined",
			Message: declinedMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isInvariantError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrNoUnlimitedInstrument),
		errors.Is(err, paymentdomain.ErrMultipleUnlimitedInstrument),
		errors.Is(err, paymentdomain.ErrLimitsExceedOrderTotal):
		return true
	default:
		return false
	}
}

func isBadRequestError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrShipmentAlreadyShipped),
		errors.Is(err, paymentdomain.ErrManualCreditDisabled),
		errors.Is(err, paymentdomain.ErrManualCreditAboveLimit),
		errors.Is(err, ledgerdomain.ErrInvalidEvent),
		errors.Is(err, ledgerdomain.ErrInvalidKind),
		errors.Is(err, ledgerdomain.ErrInvalidStatus),
		errors.Is(err, ledgerdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrShipmentNotFound),
		errors.Is(err, orderdomain.ErrSelectionNotFound),
		errors.Is(err, instrumentdomain.ErrInstrumentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// declinedMessage exposes only the customer-facing side of a decline. The
// internal message stays in logs.
func declinedMessage(err error) string {
	var declined *paymentdomain.DeclinedError
	if errors.As(err, &declined) && declined.ExternalMessage != "" {
		return declined.ExternalMessage
	}
	return "payment declined"
}
