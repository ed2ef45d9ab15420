package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Accounts start out unactivated and carry a
// one-time activation code until the owner proves control of the email.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Activated      bool           `bun:"is_activated" json:"is_activated,omitempty"`
	ActivationCode string         `bun:"activation_code,nullzero" json:"-"`
	Groups         []*Group       `bun:"m2m:user_groups,join:User=Group" json:"groups,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	ActivatedAt    *time.Time     `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NormalizeEmail lower-cases and trims the login identifier so uniqueness
// checks behave the same regardless of how the caller typed it.
func (u *User) NormalizeEmail() *User {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return u
}

// GroupIDs returns the ids of the groups the user belongs to.
func (u *User) GroupIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(u.Groups))
	for _, g := range u.Groups {
		if g != nil {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// Group is a named membership bucket referenced, not owned, by users.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:grp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserGroup is the join model between users and groups.
type UserGroup struct {
	bun.BaseModel `bun:"table:user_groups,alias:ugr"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	GroupID       uuid.UUID `bun:"group_id,pk,type:uuid" json:"group_id,omitempty"`
	Group         *Group    `bun:"rel:belongs-to,join:group_id=id" json:"group,omitempty"`
}

// Throttle tracks failed-login fallout for a single user. Records are
// created lazily the first time anyone asks about a user.
type Throttle struct {
	bun.BaseModel  `bun:"table:throttles,alias:thr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User           *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	FailedAttempts int        `bun:"failed_attempts" json:"failed_attempts,omitempty"`
	LastAttemptAt  *time.Time `bun:"last_attempt_at,nullzero" json:"last_attempt_at,omitempty"`
	SuspendedUntil *time.Time `bun:"suspended_until,nullzero" json:"suspended_until,omitempty"`
	BannedAt       *time.Time `bun:"banned_at,nullzero" json:"banned_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccountStatus is the label a listing derives for a user.
type AccountStatus = string

const (
	// StatusActive means the account is activated and unthrottled.
	StatusActive AccountStatus = "Active"
	// StatusNotActive means the account never completed activation.
	StatusNotActive AccountStatus = "Not Active"
	// StatusSuspended means the throttle put the account in a timed hold.
	StatusSuspended AccountStatus = "Suspended"
	// StatusBanned means the throttle banned the account. Terminal.
	StatusBanned AccountStatus = "Banned"
)

// UserView is a user plus its derived status, as returned by listings.
type UserView struct {
	*User
	Status AccountStatus `json:"status"`
}

// DeriveStatus folds activation and throttle state into a single label.
// Ban outranks suspension, both outrank plain activation state: a banned
// and unactivated user reports Banned, not Not Active.
func DeriveStatus(activated, suspended, banned bool) AccountStatus {
	switch {
	case banned:
		return StatusBanned
	case suspended:
		return StatusSuspended
	case activated:
		return StatusActive
	default:
		return StatusNotActive
	}
}
