package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Groups interface {
	repository.Repository[*Group]

	ListAll(ctx context.Context) ([]*Group, error)
	ListAllTx(ctx context.Context, tx bun.IDB) ([]*Group, error)
}

type groups struct {
	repository.Repository[*Group]
	db *bun.DB
}

var (
	_ Groups                        = (*groups)(nil)
	_ repository.Repository[*Group] = (*groups)(nil)
)

func NewGroupsRepository(db *bun.DB) Groups {
	repo := repository.NewRepository[*Group](db, repository.ModelHandlers[*Group]{
		NewRecord: func() *Group { return &Group{} },
		GetID: func(g *Group) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Group, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &groups{
		Repository: repo,
		db:         db,
	}
}

func (g *groups) ListAll(ctx context.Context) ([]*Group, error) {
	return g.ListAllTx(ctx, g.db)
}

func (g *groups) ListAllTx(ctx context.Context, tx bun.IDB) ([]*Group, error) {
	records := []*Group{}
	err := tx.NewSelect().
		Model(&records).
		Order("grp.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DiffMemberships walks the FULL group catalog and decides membership per
// group: desired-but-not-current groups are added, current-but-not-desired
// are removed. Ids absent from the catalog are ignored on both sides, so
// the result can never reference an unknown group.
func DiffMemberships(current, desired, all []uuid.UUID) (add, remove []uuid.UUID) {
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	desiredSet := make(map[uuid.UUID]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	for _, id := range all {
		_, isMember := currentSet[id]
		_, wanted := desiredSet[id]

		switch {
		case wanted && !isMember:
			add = append(add, id)
		case !wanted && isMember:
			remove = append(remove, id)
		}
	}

	return add, remove
}
