package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterUserMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	OnResponse func(o Outcome)
}

func (e RegisterUserMessage) Type() string { return "account.register" }

type RegisterUserHandler struct {
	service *AccountLifecycle
}

func NewRegisterUserHandler(service *AccountLifecycle) *RegisterUserHandler {
	return &RegisterUserHandler{service: service}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	outcome, err := h.service.Register(ctx, RegisterInput{
		Email:     event.Email,
		Password:  event.Password,
		FirstName: event.FirstName,
		LastName:  event.LastName,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(outcome)
	}

	return nil
}
