package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BanUserSQL marks the throttle banned. The COALESCE keeps the original
// ban timestamp if one is already set: bans never refresh or clear.
var BanUserSQL = `UPDATE "throttles" AS "thr"
SET
	"banned_at" = COALESCE("thr"."banned_at", ?)
WHERE
	"thr"."user_id" = ? RETURNING *;`

type Throttles interface {
	repository.Repository[*Throttle]

	GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*Throttle, error)
	GetOrCreateByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Throttle, error)

	RecordFailure(ctx context.Context, record *Throttle, at time.Time) (*Throttle, error)
	ResetFailures(ctx context.Context, record *Throttle) (*Throttle, error)
	MarkSuspended(ctx context.Context, record *Throttle, until time.Time) (*Throttle, error)
	MarkBanned(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type throttles struct {
	repository.Repository[*Throttle]
	db *bun.DB
}

var (
	_ Throttles                        = (*throttles)(nil)
	_ repository.Repository[*Throttle] = (*throttles)(nil)
)

func NewThrottlesRepository(db *bun.DB) Throttles {
	repo := repository.NewRepository[*Throttle](db, repository.ModelHandlers[*Throttle]{
		NewRecord: func() *Throttle { return &Throttle{} },
		GetID: func(t *Throttle) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Throttle, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &throttles{
		Repository: repo,
		db:         db,
	}
}

func (t *throttles) GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*Throttle, error) {
	return t.GetOrCreateByUserIDTx(ctx, t.db, userID)
}

// GetOrCreateByUserIDTx lazily materializes the throttle record the first
// time anything asks about a user.
func (t *throttles) GetOrCreateByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Throttle, error) {
	record := &Throttle{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err == nil {
		return record, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record = &Throttle{
		ID:     uuid.New(),
		UserID: userID,
	}

	return t.Repository.CreateTx(ctx, tx, record)
}

func (t *throttles) RecordFailure(ctx context.Context, record *Throttle, at time.Time) (*Throttle, error) {
	update := &Throttle{
		ID:             record.ID,
		UserID:         record.UserID,
		FailedAttempts: record.FailedAttempts + 1,
		LastAttemptAt:  &at,
	}

	return t.Repository.UpdateTx(ctx, t.db, update, repository.UpdateByID(record.ID.String()))
}

func (t *throttles) MarkSuspended(ctx context.Context, record *Throttle, until time.Time) (*Throttle, error) {
	update := &Throttle{
		ID:             record.ID,
		UserID:         record.UserID,
		FailedAttempts: record.FailedAttempts,
		SuspendedUntil: &until,
	}

	return t.Repository.UpdateTx(ctx, t.db, update, repository.UpdateByID(record.ID.String()))
}

func (t *throttles) MarkBanned(ctx context.Context, userID uuid.UUID, at time.Time) error {
	res, err := t.Repository.RawTx(ctx, t.db, BanUserSQL, at, userID.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"user_id": userID.String(),
			})
	}

	return nil
}

// ResetFailures zeroes the failure counter. The columns are cleared with
// an explicit SET because a struct update would skip zero values.
func (t *throttles) ResetFailures(ctx context.Context, record *Throttle) (*Throttle, error) {
	_, err := t.db.NewUpdate().
		Model((*Throttle)(nil)).
		Set("failed_attempts = 0").
		Set("last_attempt_at = NULL").
		Where("thr.id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	record.FailedAttempts = 0
	record.LastAttemptAt = nil
	return record, nil
}
