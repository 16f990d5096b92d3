package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/data/pgxutil"
	"github.com/target/mmk-items-api/internal/domain/model"
	apperrors "github.com/target/mmk-items-api/internal/errors"
)

const (
	defaultItemListLimit = 50
	maxItemListLimit     = 1000
)

// ItemRepo provides database operations for items.
type ItemRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.ItemRepository = (*ItemRepo)(nil)

// NewItemRepo creates a new ItemRepo with real time provider.
func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewItemRepoWithTimeProvider creates a new ItemRepo with a custom time provider (useful for tests).
func NewItemRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ItemRepo {
	return &ItemRepo{DB: db, timeProvider: tp}
}

// Create inserts a new item with a generated ID.
func (r *ItemRepo) Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	if req == nil {
		return nil, errors.New("create item request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	out, err := pgxutil.QueryOne[model.Item](ctx, r.DB, itemInsertQuery,
		uuid.NewString(), req.Name, req.Description, req.Status, req.Email, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// GetByID retrieves an item by ID. Malformed IDs are reported as not found.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*model.Item, error) {
	if !validID(id) {
		return nil, ErrItemNotFound
	}
	out, err := pgxutil.QueryOne[model.Item](ctx, r.DB, itemGetByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item by ID: %w", err)
	}
	return &out, nil
}

// List retrieves items with pagination, oldest first.
func (r *ItemRepo) List(ctx context.Context, opts model.ItemsListOptions) ([]*model.Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultItemListLimit
	}
	limit = min(limit, maxItemListLimit)
	offset := max(opts.Offset, 0)

	items, err := pgxutil.QueryAll[model.Item](ctx, r.DB, itemListQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// ListAllIDs returns every item ID in creation order.
func (r *ItemRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, itemListIDsQuery)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list item IDs: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Update replaces every mutable field of an item.
func (r *ItemRepo) Update(ctx context.Context, id string, req model.UpdateItemRequest) (*model.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return r.write(ctx, writeParams{
		id:          id,
		name:        req.Name,
		description: req.Description,
		status:      req.Status,
		email:       req.Email,
	})
}

// Save writes the item's status and bumps updated_at. Other columns keep their
// stored values, so edits made after item was loaded survive. The item must
// already exist.
func (r *ItemRepo) Save(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item == nil {
		return nil, errors.New("item is required")
	}
	if !validID(item.ID) {
		return nil, ErrItemNotFound
	}
	out, err := pgxutil.QueryOne[model.Item](ctx, r.DB, itemSaveStatusQuery,
		item.ID, strings.TrimSpace(item.Status), r.timeProvider.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to save item status: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Delete deletes an item by ID and reports whether a row was removed.
func (r *ItemRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return affected > 0, nil
}

type writeParams struct {
	id, name, description, status, email string
}

func (r *ItemRepo) write(ctx context.Context, p writeParams) (*model.Item, error) {
	if !validID(p.id) {
		return nil, ErrItemNotFound
	}
	out, err := pgxutil.QueryOne[model.Item](ctx, r.DB, itemUpdateQuery,
		p.id, p.name, p.description, p.status, p.email, r.timeProvider.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to save item: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

const (
	itemColumns = `id, name, description, status, email, created_at, updated_at`

	itemInsertQuery = `
		INSERT INTO items (id, name, description, status, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + itemColumns

	itemGetByIDQuery = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	itemListQuery = `
		SELECT ` + itemColumns + `
		FROM items
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`

	itemListIDsQuery = `SELECT id::text FROM items ORDER BY created_at, id`

	itemUpdateQuery = `
		UPDATE items
		SET name = $2, description = $3, status = $4, email = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + itemColumns

	itemSaveStatusQuery = `
		UPDATE items
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + itemColumns
)
