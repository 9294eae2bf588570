package inventory

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

// openTestDB connects to DATABASE_URL and applies the schema. Tests skip when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func TestPostgresRepository_ApplyIsConditional(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	p := &Product{ID: uuid.New(), Name: "pg-test", Quantity: 5, PackSize: 6, Statuses: []StatusLabel{StatusPlaced}}
	require.NoError(t, repo.Create(ctx, p))
	t.Cleanup(func() { db.Exec(`DELETE FROM products WHERE id=$1`, p.ID) })

	exp := time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.Apply(ctx, p.ID, Change{Delta: -5, ReplaceExpiration: true, Expiration: &exp})
	require.NoError(t, err)
	require.Equal(t, 0, got.Quantity)
	require.True(t, exp.Equal(*got.ExpirationDate))

	_, err = repo.Apply(ctx, p.ID, Change{Delta: -1})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	_, err = repo.Apply(ctx, uuid.New(), Change{Delta: 1})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, repo.UpdateStatuses(ctx, p.ID, []StatusLabel{StatusOutOfStock}))
	empty, err := repo.ListByQuantity(ctx, 0)
	require.NoError(t, err)
	var found bool
	for _, e := range empty {
		if e.ID == p.ID {
			found = true
			require.Equal(t, []StatusLabel{StatusOutOfStock}, e.Statuses)
		}
	}
	require.True(t, found)
}
