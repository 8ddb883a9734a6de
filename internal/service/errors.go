package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/3tharva/split-the-tab-ai/internal/models"
	"github.com/3tharva/split-the-tab-ai/internal/receipt"
	"github.com/3tharva/split-the-tab-ai/internal/storage"
	"github.com/3tharva/split-the-tab-ai/internal/wizard"
)

// ErrSessionMismatch is returned when a token is used for another session.
var ErrSessionMismatch = errors.New("session token does not match this session")

// toConnectError maps domain errors onto Connect codes. Errors that already
// carry a code pass through unchanged.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	var unassigned *wizard.UnassignedItemsError
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, models.ErrItemNotFound),
		errors.Is(err, models.ErrPersonNotFound):
		return connect.NewError(connect.CodeNotFound, err)

	case errors.Is(err, models.ErrEmptyName),
		errors.Is(err, models.ErrDuplicateName),
		errors.Is(err, receipt.ErrNotImage),
		errors.Is(err, receipt.ErrEmpty),
		errors.Is(err, receipt.ErrTooLarge),
		errors.Is(err, receipt.ErrUndecoded):
		return connect.NewError(connect.CodeInvalidArgument, err)

	case errors.As(err, &unassigned),
		errors.Is(err, wizard.ErrNoReceipt),
		errors.Is(err, wizard.ErrNoPeople),
		errors.Is(err, wizard.ErrNoNextStep),
		errors.Is(err, wizard.ErrNoPrevStep),
		errors.Is(err, wizard.ErrUnknownStep),
		errors.Is(err, wizard.ErrNotEditable),
		errors.Is(err, wizard.ErrNotUpload):
		return connect.NewError(connect.CodeFailedPrecondition, err)

	case errors.Is(err, receipt.ErrIngestionFailed) && errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, receipt.ErrIngestionFailed)

	case errors.Is(err, receipt.ErrIngestionFailed):
		return connect.NewError(connect.CodeUnavailable, receipt.ErrIngestionFailed)

	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}

	return connect.NewError(connect.CodeInternal, err)
}

// validationError turns validator output into an InvalidArgument error that
// names the offending JSON fields.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return connect.NewError(connect.CodeInvalidArgument, errors.New(strings.Join(msgs, "; ")))
}

// httpStatus maps a Connect code onto the status used by the plain-HTTP routes.
func httpStatus(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeFailedPrecondition:
		return http.StatusConflict
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable
	case connect.CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
