package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

const (
	// TemplateActivation is the template name handed to the gateway for
	// activation email, welcome and resend alike.
	TemplateActivation = "emails/activation"

	// SubjectWelcome is the subject line for the registration email.
	SubjectWelcome = "Welcome! Confirm your account"
	// SubjectActivate is the subject line for a re-sent activation email.
	SubjectActivate = "Activate your account"
)

const opTimeout = time.Second * 10

// AccountLifecycle orchestrates registration, activation, profile and
// group updates, removal, and status listings. The credential store,
// throttle tracker, and notification gateway are explicit dependencies so
// callers can substitute in-memory fakes.
type AccountLifecycle struct {
	repo         RepositoryManager
	tracker      ThrottleReader
	gateway      NotificationGateway
	activitySink ActivitySink
	logger       Logger
	useHashid    bool
}

// LifecycleOption customizes service construction.
type LifecycleOption func(*AccountLifecycle)

// WithLifecycleLogger overrides the default logger.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(s *AccountLifecycle) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLifecycleActivitySink sets the sink lifecycle events are published to.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(s *AccountLifecycle) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithDeterministicIDs derives user ids from the login email instead of
// random uuids, keeping ids stable across environments.
func WithDeterministicIDs() LifecycleOption {
	return func(s *AccountLifecycle) {
		s.useHashid = true
	}
}

// NewAccountLifecycle builds the service. gateway may be nil, in which
// case notification sends become no-ops.
func NewAccountLifecycle(repo RepositoryManager, tracker ThrottleReader, gateway NotificationGateway, opts ...LifecycleOption) *AccountLifecycle {
	if gateway == nil {
		gateway = NotificationGatewayFunc(nil)
	}

	svc := &AccountLifecycle{
		repo:         repo,
		tracker:      tracker,
		gateway:      gateway,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}

	return svc
}

// RegisterInput carries everything needed to create an account.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate enforces the registration contract.
func (i RegisterInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Email, validation.Required),
		validation.Field(&i.Password, validation.Required),
		validation.Field(&i.FirstName, validation.RuneLength(0, 255)),
		validation.Field(&i.LastName, validation.RuneLength(0, 255)),
	)
}

// UpdateInput carries a profile update plus the DESIRED group set. Groups
// absent from the set are removed, present ones added: the sync is
// exhaustive over the whole catalog, not just the ids mentioned here.
type UpdateInput struct {
	ID        uuid.UUID   `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	GroupIDs  []uuid.UUID `json:"group_ids"`
}

// Validate enforces the update contract.
func (i UpdateInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.FirstName, validation.RuneLength(0, 255)),
		validation.Field(&i.LastName, validation.RuneLength(0, 255)),
		validation.Field(&i.Phone, validation.By(validPhone)),
	)
}

func validPhone(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}

	return nil
}

// Register creates an account pending activation and emails the
// activation code. The email is best-effort: delivery failure never rolls
// the account back.
func (s *AccountLifecycle) Register(ctx context.Context, input RegisterInput) (Outcome, error) {
	if strings.TrimSpace(input.Email) == "" {
		return s.recover(ErrLoginRequired)
	}

	if err := input.Validate(); err != nil {
		return Outcome{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration input")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user := &User{
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}
	user.NormalizeEmail()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		user.PasswordHash = hash

		if s.useHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			if IsUniqueViolation(err) || IsConflict(err) {
				return ErrUserExists.WithMetadata(map[string]any{
					"email": user.Email,
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		return nil
	})

	if err != nil {
		return s.recover(err)
	}

	s.sendActivationEmail(user, SubjectWelcome)

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.ID.String(),
	})

	return successOutcome(MsgRegistered), nil
}

// Update persists profile fields and syncs group membership in one
// transaction. Every group in the catalog is explicitly evaluated for
// membership, mirroring the desired set exactly.
func (s *AccountLifecycle) Update(ctx context.Context, input UpdateInput) (Outcome, error) {
	if err := input.Validate(); err != nil {
		return Outcome{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid update input")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.repo.Users().GetByIdentifierTx(ctx, tx, input.ID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound.WithMetadata(map[string]any{
					"id": input.ID.String(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for update")
		}

		user.FirstName = input.FirstName
		user.LastName = input.LastName
		user.Phone = input.Phone

		if _, err := s.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			if IsUniqueViolation(err) {
				return ErrUserExists.WithMetadata(map[string]any{
					"id": user.ID.String(),
				})
			}
			return ErrPersistenceFailed.WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
		}

		catalog, err := s.repo.Groups().ListAllTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list group catalog")
		}

		current, err := s.repo.Users().ListGroupIDsTx(ctx, tx, user.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list current memberships")
		}

		all := make([]uuid.UUID, 0, len(catalog))
		for _, g := range catalog {
			all = append(all, g.ID)
		}

		add, remove := DiffMemberships(current, input.GroupIDs, all)
		if err := s.repo.Users().SetGroupsTx(ctx, tx, user.ID, add, remove); err != nil {
			return ErrPersistenceFailed.WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
		}

		return nil
	})

	if err != nil {
		return s.recover(err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		UserID:    input.ID.String(),
	})

	return successOutcome(MsgProfileUpdated), nil
}

// Activate consumes the one-time code. A correct code flips activated
// exactly once; replaying the same code can never succeed again because
// consumption clears it.
func (s *AccountLifecycle) Activate(ctx context.Context, userID uuid.UUID, code string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.repo.Users().GetByIdentifierTx(ctx, tx, userID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound.WithMetadata(map[string]any{
					"id": userID.String(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
		}

		if user.Activated {
			return ErrUserAlreadyActivated.WithMetadata(map[string]any{
				"id": userID.String(),
			})
		}

		if !MatchActivationCode(user.ActivationCode, code) {
			return ErrActivationFailed.WithMetadata(map[string]any{
				"id": userID.String(),
			})
		}

		consumed, err := s.repo.Users().ConsumeActivationCodeTx(ctx, tx, userID, code)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume activation code")
		}
		if !consumed {
			// lost the race to a concurrent activation
			return ErrActivationFailed.WithMetadata(map[string]any{
				"id": userID.String(),
			})
		}

		return nil
	})

	if err != nil {
		return s.recover(err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserActivated,
		UserID:    userID.String(),
	})

	return successOutcome(MsgActivationComplete), nil
}

// ResendActivation re-sends the activation email for an unactivated
// account. The stored code is reused when present so previously mailed
// links keep working; a missing code is re-issued.
func (s *AccountLifecycle) ResendActivation(ctx context.Context, email string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user *User

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().FindByLoginTx(ctx, tx, email)
		if err != nil {
			if errors.Is(err, ErrLoginRequired) {
				return err
			}
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound.WithMetadata(map[string]any{
					"email": email,
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for resend")
		}

		if user.Activated {
			return ErrResendAlreadyActivated.WithMetadata(map[string]any{
				"email": user.Email,
			})
		}

		if user.ActivationCode == "" {
			user.ActivationCode = NewActivationCode()
			if _, err := s.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to re-issue activation code")
			}
		}

		return nil
	})

	if err != nil {
		return s.recover(err)
	}

	s.sendActivationEmail(user, SubjectActivate)

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventActivationResent,
		UserID:    user.ID.String(),
	})

	return successOutcome(MsgActivationResent), nil
}

// Remove deletes the user. A missing user reports false with no error so
// removal looks idempotent to callers.
func (s *AccountLifecycle) Remove(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	removed, err := s.repo.Users().DeleteByID(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove user")
	}

	if removed {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventUserRemoved,
			UserID:    userID.String(),
		})
	}

	return removed, nil
}

// ByID returns the user or ErrUserNotFound.
func (s *AccountLifecycle) ByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user, err := s.repo.Users().GetByIdentifier(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound.WithMetadata(map[string]any{
				"id": userID.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	return user, nil
}

// All lists every user with a derived status label. Throttle reads are
// independent per user and side-effect free, so two consecutive listings
// with no intervening mutation produce identical labels.
func (s *AccountLifecycle) All(ctx context.Context) ([]UserView, error) {
	users, err := s.repo.Users().ListWithGroups(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}

	views := make([]UserView, 0, len(users))
	for _, user := range users {
		suspended, err := s.tracker.IsSuspended(ctx, user.ID)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read suspension state")
		}

		banned, err := s.tracker.IsBanned(ctx, user.ID)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read ban state")
		}

		views = append(views, UserView{
			User:   user,
			Status: DeriveStatus(user.Activated, suspended, banned),
		})
	}

	return views, nil
}

// recover folds taxonomy errors into outcomes; anything else propagates.
func (s *AccountLifecycle) recover(err error) (Outcome, error) {
	if out, ok := failureOutcome(err); ok {
		s.logger.Debug("lifecycle operation rejected: %v", err)
		return out, nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return Outcome{}, richErr
	}

	return Outcome{}, goerrors.Wrap(err, goerrors.CategoryInternal, "lifecycle operation failed")
}

// sendActivationEmail fires the notification on a detached goroutine. The
// caller's result never waits on delivery, and failures only log.
func (s *AccountLifecycle) sendActivationEmail(user *User, subject string) {
	data := map[string]any{
		"userId":         user.ID.String(),
		"activationCode": user.ActivationCode,
		"email":          user.Email,
		"firstName":      user.FirstName,
	}

	to := user.Email

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if err := s.gateway.Send(ctx, TemplateActivation, data, to, subject); err != nil {
			s.logger.Error("activation email delivery failed for %s: %v", to, err)
		}
	}()
}

func (s *AccountLifecycle) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink failure: %v", err)
	}
}
