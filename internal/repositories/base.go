package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nanafox/tiny-cart/internal/apperr"
)

// Policy decides whether actor may modify or delete entity.
type Policy[T any] func(actor uuid.UUID, entity *T) bool

// Paging holds the server side pagination limits.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// Page is a caller's pagination request.
type Page struct {
	Skip    int
	Limit   int
	OrderBy string // column name, "-" prefix for descending
	Join    string
}

// Scope narrows a list query, e.g. to one owner.
type Scope = func(*gorm.DB) *gorm.DB

// BaseOptions configures a Base repository for one entity.
type BaseOptions[T any] struct {
	Name     string
	Policy   Policy[T]
	Sortable []string
	// Joins maps accepted join names to GORM associations.
	Joins    map[string]string
	Preloads []string
	// Cascade runs inside the delete transaction before the entity row is removed.
	Cascade func(tx *gorm.DB, entity *T) error
}

// Base implements the CRUD contract shared by every entity, with the
// authorization rule supplied per entity as a Policy.
type Base[T any] struct {
	db       *gorm.DB
	paging   Paging
	name     string
	policy   Policy[T]
	sortable map[string]struct{}
	joins    map[string]string
	preloads []string
	cascade  func(tx *gorm.DB, entity *T) error
}

// NewBase creates a new generic repository.
func NewBase[T any](db *gorm.DB, paging Paging, opts BaseOptions[T]) *Base[T] {
	sortable := make(map[string]struct{}, len(opts.Sortable))
	for _, col := range opts.Sortable {
		sortable[col] = struct{}{}
	}
	return &Base[T]{
		db:       db,
		paging:   paging,
		name:     opts.Name,
		policy:   opts.Policy,
		sortable: sortable,
		joins:    opts.Joins,
		preloads: opts.Preloads,
		cascade:  opts.Cascade,
	}
}

// GetByID returns the entity with the given id.
func (b *Base[T]) GetByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	q := conn(ctx, b.db)
	for _, p := range b.preloads {
		q = q.Preload(p)
	}
	if err := q.First(&entity, "id = ?", id).Error; err != nil {
		return nil, translateError(err, b.name)
	}
	return &entity, nil
}

// List returns one page of entities. The limit is clamped to the configured
// maximum; ordering and joins must be whitelisted.
func (b *Base[T]) List(ctx context.Context, page Page, scopes ...Scope) ([]T, error) {
	if page.Skip < 0 {
		return nil, apperr.New(apperr.InvalidQuery, "skip must not be negative")
	}

	q := conn(ctx, b.db).Scopes(scopes...)

	var joined string
	if page.Join != "" {
		assoc, ok := b.joins[strings.ToLower(page.Join)]
		if !ok {
			return nil, apperr.New(apperr.InvalidQuery, "cannot join %s with %s", b.name, page.Join)
		}
		q = q.Joins(assoc)
		joined = assoc
	}

	if page.OrderBy != "" {
		col, desc := strings.TrimPrefix(page.OrderBy, "-"), strings.HasPrefix(page.OrderBy, "-")
		if _, ok := b.sortable[col]; !ok {
			return nil, apperr.New(apperr.InvalidQuery, "cannot order %s by %s", b.name, page.OrderBy)
		}
		q = q.Order(clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: col},
			Desc:   desc,
		})
	}

	for _, p := range b.preloads {
		if p != joined {
			q = q.Preload(p)
		}
	}

	var entities []T
	if err := q.Offset(page.Skip).Limit(b.clamp(page.Limit)).Find(&entities).Error; err != nil {
		return nil, translateError(err, b.name)
	}
	return entities, nil
}

func (b *Base[T]) clamp(limit int) int {
	switch {
	case limit <= 0:
		return b.paging.DefaultLimit
	case limit > b.paging.MaxLimit:
		return b.paging.MaxLimit
	default:
		return limit
	}
}

// Create inserts entity without touching its associations.
func (b *Base[T]) Create(ctx context.Context, entity *T) error {
	if err := conn(ctx, b.db).Omit(clause.Associations).Create(entity).Error; err != nil {
		return translateError(err, b.name)
	}
	return nil
}

// Authorize returns Forbidden unless the policy allows actor to act on entity.
func (b *Base[T]) Authorize(actor uuid.UUID, entity *T, action string) error {
	if b.policy == nil || !b.policy(actor, entity) {
		return apperr.New(apperr.Forbidden, "You are not authorized to %s this %s", action, b.name)
	}
	return nil
}

// Update applies fields (column name to value) to the entity with the given id
// and returns the stored result.
func (b *Base[T]) Update(ctx context.Context, id, actor uuid.UUID, fields map[string]any) (*T, error) {
	var updated *T
	err := runAtomic(ctx, b.db, func(ctx context.Context) error {
		entity, err := b.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := b.Authorize(actor, entity, "update"); err != nil {
			return err
		}

		if len(fields) > 0 {
			err = conn(ctx, b.db).Model(new(T)).Where("id = ?", id).Updates(fields).Error
			if err != nil {
				return translateError(err, b.name)
			}
		}

		updated, err = b.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the entity with the given id together with everything the
// entity's cascade owns.
func (b *Base[T]) Delete(ctx context.Context, id, actor uuid.UUID) error {
	return runAtomic(ctx, b.db, func(ctx context.Context) error {
		entity, err := b.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := b.Authorize(actor, entity, "delete"); err != nil {
			return err
		}

		tx := conn(ctx, b.db)
		if b.cascade != nil {
			if err := b.cascade(tx, entity); err != nil {
				return translateError(err, b.name)
			}
		}
		if err := tx.Delete(entity).Error; err != nil {
			return translateError(err, b.name)
		}
		return nil
	})
}
