package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// CredentialModel is the Bun model for persisted credentials.
type CredentialModel struct {
	bun.BaseModel `bun:"table:session_credentials"`

	Key       string    `bun:"cred_key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunStore keeps credentials in a SQL table through Bun.
type BunStore struct {
	db  bun.IDB
	now func() time.Time
}

// NewBunStore creates a store using db. Call CreateSchema once if the
// table is not managed by migrations.
func NewBunStore(db bun.IDB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

// CreateSchema creates the credentials table if it does not exist.
func (b *BunStore) CreateSchema(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*CredentialModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return backendError(err, "sql", "create credentials table", nil)
	}
	return nil
}

func (b *BunStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var model CredentialModel
	err := b.db.NewSelect().
		Model(&model).
		Where("cred_key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendError(err, "sql", "select credential", map[string]any{"key": key})
	}
	return model.Value, true, nil
}

func (b *BunStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	model := &CredentialModel{
		Key:       key,
		Value:     value,
		UpdatedAt: b.now().UTC(),
	}

	_, err := b.db.NewInsert().
		Model(model).
		On("CONFLICT (cred_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return backendError(err, "sql", "upsert credential", map[string]any{"key": key})
	}
	return nil
}

func (b *BunStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := b.db.NewDelete().
		Model((*CredentialModel)(nil)).
		Where("cred_key = ?", key).
		Exec(ctx)
	if err != nil {
		return backendError(err, "sql", "delete credential", map[string]any{"key": key})
	}
	return nil
}
