package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateUserSQL consumes the activation code in a single statement: the
// code guard makes consumption one-time even under concurrent attempts.
var ActivateUserSQL = `UPDATE "users" AS "usr"
SET
	"is_activated" = TRUE,
	"activation_code" = NULL,
	"activated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."is_activated" = FALSE
AND (
	"usr"."id" = ?
)
AND "usr"."activation_code" = ? RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	FindByLogin(ctx context.Context, email string) (*User, error)
	FindByLoginTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	ConsumeActivationCode(ctx context.Context, id uuid.UUID, code string) (bool, error)
	ConsumeActivationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) (bool, error)

	SetGroupsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, add, remove []uuid.UUID) error
	ListGroupIDsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]uuid.UUID, error)

	ListWithGroups(ctx context.Context) ([]*User, error)

	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx creates the user pending activation. A fresh activation code
// is issued here unless the caller provided one.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user != nil && !user.Activated && user.ActivationCode == "" {
		user.ActivationCode = NewActivationCode()
	}
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) FindByLogin(ctx context.Context, email string) (*User, error) {
	return a.FindByLoginTx(ctx, a.db, email)
}

func (a *users) FindByLoginTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, ErrLoginRequired
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalized).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": normalized,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) ConsumeActivationCode(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	return a.ConsumeActivationCodeTx(ctx, a.db, id, code)
}

func (a *users) ConsumeActivationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	activatedAt := time.Now()
	res, err := a.Repository.RawTx(ctx, tx, ActivateUserSQL, activatedAt, id.String(), code)
	if err != nil {
		return false, err
	}

	return len(res) > 0, nil
}

// SetGroupsTx applies a computed membership diff. Additions are idempotent
// so re-playing a diff cannot violate the join table's primary key.
func (a *users) SetGroupsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, add, remove []uuid.UUID) error {
	if len(add) > 0 {
		memberships := make([]*UserGroup, 0, len(add))
		for _, groupID := range add {
			memberships = append(memberships, &UserGroup{
				UserID:  userID,
				GroupID: groupID,
			})
		}

		if _, err := tx.NewInsert().
			Model(&memberships).
			On("CONFLICT DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
	}

	if len(remove) > 0 {
		if _, err := tx.NewDelete().
			Model((*UserGroup)(nil)).
			Where("user_id = ?", userID).
			Where("group_id IN (?)", bun.In(remove)).
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (a *users) ListGroupIDsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]uuid.UUID, error) {
	memberships := []*UserGroup{}
	err := tx.NewSelect().
		Model(&memberships).
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupID)
	}
	return ids, nil
}

func (a *users) ListWithGroups(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Relation("Groups").
		Order("usr.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByID removes the user, reporting whether anything was deleted.
// Missing users are not an error so deletion reads as idempotent.
func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("usr.id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.NormalizeEmail()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  strings.ToLower(trimmed),
		})
	}

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
