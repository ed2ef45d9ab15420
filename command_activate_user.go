package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ActivateUserMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Code       string    `json:"code"`
	OnResponse func(o Outcome)
}

func (e ActivateUserMessage) Type() string { return "account.activate" }

type ActivateUserHandler struct {
	service *AccountLifecycle
}

func NewActivateUserHandler(service *AccountLifecycle) *ActivateUserHandler {
	return &ActivateUserHandler{service: service}
}

func (h *ActivateUserHandler) Execute(ctx context.Context, event ActivateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateUserHandler) execute(ctx context.Context, event ActivateUserMessage) error {
	outcome, err := h.service.Activate(ctx, event.UserID, event.Code)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(outcome)
	}

	return nil
}
