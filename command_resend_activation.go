package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type ResendActivationMessage struct {
	Email      string `json:"email"`
	OnResponse func(o Outcome)
}

func (e ResendActivationMessage) Type() string { return "account.activation.resend" }

type ResendActivationHandler struct {
	service *AccountLifecycle
}

func NewResendActivationHandler(service *AccountLifecycle) *ResendActivationHandler {
	return &ResendActivationHandler{service: service}
}

func (h *ResendActivationHandler) Execute(ctx context.Context, event ResendActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during activation resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendActivationHandler) execute(ctx context.Context, event ResendActivationMessage) error {
	outcome, err := h.service.ResendActivation(ctx, event.Email)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "activation resend failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(outcome)
	}

	return nil
}
