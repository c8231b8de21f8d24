package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/deskflow/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/deskflow/internal/usage/domain"
)

// apiError is the wire shape of every error response.
type apiError struct {
	status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

var (
	ErrNotFound     = &apiError{status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrUnauthorized = &apiError{status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
)

func invalidRequestError() error {
	return &apiError{status: http.StatusBadRequest, Code: "invalid_request", Message: "malformed request body"}
}

func newValidationError(field, code, message string) error {
	return &apiError{status: http.StatusUnprocessableEntity, Code: code, Message: message, Field: field}
}

// AbortWithError maps domain errors onto HTTP statuses and writes the error
// envelope.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.status, gin.H{"error": api})
		return
	}

	status := statusForError(err)
	body := &apiError{status: status, Code: err.Error(), Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Code = "internal_error"
		body.Message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func statusForError(err error) int {
	switch {
	case isNotFoundError(err):
		return http.StatusNotFound
	case isConflictError(err):
		return http.StatusConflict
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orgcontext.ErrMissingOrganization):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrPlanNotFound),
		errors.Is(err, catalogdomain.ErrAddOnNotFound),
		errors.Is(err, coupondomain.ErrCouponNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrActiveSubscriptionExists),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrPeriodNotEnded),
		errors.Is(err, subscriptiondomain.ErrTrialNotEnded),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft),
		errors.Is(err, invoicedomain.ErrInvoiceNotDue),
		errors.Is(err, catalogdomain.ErrAddOnAlreadyAttached),
		errors.Is(err, coupondomain.ErrRedemptionsExhausted):
		return true
	}
	return false
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidPricingModel),
		errors.Is(err, catalogdomain.ErrInvalidPricingType),
		errors.Is(err, catalogdomain.ErrInvalidCurrency),
		errors.Is(err, catalogdomain.ErrInvalidAmount),
		errors.Is(err, catalogdomain.ErrInvalidInterval),
		errors.Is(err, catalogdomain.ErrInvalidPlanID),
		errors.Is(err, catalogdomain.ErrInvalidAddOnID),
		errors.Is(err, catalogdomain.ErrInvalidBillingType),
		errors.Is(err, catalogdomain.ErrInvalidTierTable),
		errors.Is(err, catalogdomain.ErrPlanArchived),
		errors.Is(err, coupondomain.ErrInvalidCode),
		errors.Is(err, coupondomain.ErrInvalidDiscountType),
		errors.Is(err, coupondomain.ErrInvalidDiscountValue),
		errors.Is(err, coupondomain.ErrCouponExpired),
		errors.Is(err, coupondomain.ErrCouponDisabled),
		errors.Is(err, coupondomain.ErrCouponNotApplicable),
		errors.Is(err, pricingdomain.ErrInvalidCycle),
		errors.Is(err, pricingdomain.ErrInvalidSeats),
		errors.Is(err, pricingdomain.ErrPricingNotFoundForCycle),
		errors.Is(err, subscriptiondomain.ErrInvalidCustomer),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidCycle),
		errors.Is(err, subscriptiondomain.ErrInvalidSeats),
		errors.Is(err, subscriptiondomain.ErrInvalidCollectionMethod),
		errors.Is(err, subscriptiondomain.ErrPlanNotSubscribable),
		errors.Is(err, invoicedomain.ErrInvalidPeriod),
		errors.Is(err, invoicedomain.ErrSubscriptionGone),
		errors.Is(err, invoicedomain.ErrMissingVoidReason),
		errors.Is(err, usagedomain.ErrInvalidSubscription),
		errors.Is(err, usagedomain.ErrInvalidMeter),
		errors.Is(err, usagedomain.ErrInvalidQuantity),
		errors.Is(err, usagedomain.ErrInvalidPeriod),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidReference),
		errors.Is(err, paymentdomain.ErrAmountMismatch):
		return true
	}
	return false
}
