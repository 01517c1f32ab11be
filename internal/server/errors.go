package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	chapterdomain "github.com/plantmetrics/plant/internal/chapter/domain"
	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	notificationdomain "github.com/plantmetrics/plant/internal/notification/domain"
	obscontext "github.com/plantmetrics/plant/internal/observability/context"
	paymentdomain "github.com/plantmetrics/plant/internal/payment/domain"
	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
	reportdomain "github.com/plantmetrics/plant/internal/report/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/money"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// apiError is the wire shape of every non-2xx response.
type apiError struct {
	status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() *apiError {
	return &apiError{
		status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body or query is malformed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

var badRequestErrors = []error{
	profiledomain.ErrInvalidEmail,
	profiledomain.ErrInvalidFullName,
	profiledomain.ErrInvalidRole,
	chapterdomain.ErrInvalidName,
	metricdomain.ErrInvalidCategory,
	metricdomain.ErrInvalidValue,
	metricdomain.ErrInvalidPeriod,
	metricdomain.ErrInvalidDate,
	metricdomain.ErrInvalidUser,
	tradedomain.ErrInvalidAmount,
	tradedomain.ErrEmptyDescription,
	tradedomain.ErrCounterpartUnknown,
	paymentdomain.ErrInvalidPhone,
	paymentdomain.ErrInvalidPayload,
	notificationdomain.ErrInvalidRecipientType,
	notificationdomain.ErrInvalidSubject,
	notificationdomain.ErrInvalidMessage,
	notificationdomain.ErrChapterRequired,
	notificationdomain.ErrRoleRequired,
	notificationdomain.ErrEmailsRequired,
	reportdomain.ErrInvalidType,
	reportdomain.ErrInvalidFormat,
	reportdomain.ErrInvalidRange,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidTarget,
	money.ErrInvalidAmount,
}

var notFoundErrors = []error{
	profiledomain.ErrProfileNotFound,
	profiledomain.ErrChapterNotFound,
	chapterdomain.ErrChapterNotFound,
	chapterdomain.ErrLeaderNotFound,
	tradedomain.ErrTradeNotFound,
	invoicedomain.ErrTradeNotFound,
	invoicedomain.ErrNoInvoice,
	paymentdomain.ErrTradeNotFound,
	paymentdomain.ErrUnknownToken,
	ErrNotFound,
}

var conflictErrors = []error{
	profiledomain.ErrEmailTaken,
	chapterdomain.ErrChapterHasMembers,
	tradedomain.ErrNotCancellable,
	invoicedomain.ErrTradeNotEligible,
	paymentdomain.ErrTradeNotPayable,
}

var unprocessableErrors = []error{
	notificationdomain.ErrNoRecipients,
	paymentdomain.ErrInitiateDeclined,
	profiledomain.ErrProfileInactive,
}

// AbortWithError maps a domain error onto the HTTP response. Unknown errors
// become an opaque 500 so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, chapterdomain.ErrNotChapterLeader):
		status = http.StatusForbidden
	case errors.Is(err, ErrTooManyRequests):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, paymentdomain.ErrProviderNotFound):
		status = http.StatusServiceUnavailable
	case matches(err, badRequestErrors):
		status = http.StatusBadRequest
	case matches(err, notFoundErrors):
		status = http.StatusNotFound
	case matches(err, conflictErrors):
		status = http.StatusConflict
	case matches(err, unprocessableErrors):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		actorType, actorID := obscontext.ActorFromGin(c)
		zap.L().Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", obscontext.RequestIDFromGin(c)),
			zap.String("actor_type", actorType),
			zap.String("actor_id", actorID),
		)
		c.AbortWithStatusJSON(status, gin.H{"error": &apiError{
			Code:    "internal_error",
			Message: "something went wrong",
		}})
		return
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{
		status:  status,
		Code:    err.Error(),
		Message: err.Error(),
	}})
}

func matches(err error, candidates []error) bool {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

// parseOptionalTime accepts RFC 3339 or a bare date. endOfDay pushes a bare
// date to 23:59:59 so inclusive range filters behave.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	ts = ts.UTC()
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Second)
	}
	return &ts, nil
}
