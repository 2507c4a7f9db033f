package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTransactionPostgresContainer(t *testing.T) (*sqlx.DB, uuid.UUID, func()) {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "password", "POSTGRES_DB": "testdb", "POSTGRES_USER": "postgres"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	}

	container, err := tc.GenericContainer(context.Background(), tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	assert.NoError(t, err)

	host, _ := container.Host(context.Background())
	port, _ := container.MappedPort(context.Background(), "5432")

	dsn := fmt.Sprintf("postgres://postgres:password@%s:%d/testdb?sslmode=disable", host, port.Int())

	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("pgx", dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	assert.NoError(t, err)

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username VARCHAR(255) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id UUID PRIMARY KEY,
		owner_id UUID NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
		text VARCHAR(255) NOT NULL CHECK (text <> ''),
		amount DOUBLE PRECISION NOT NULL,
		file_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err = db.Exec(schema)
	assert.NoError(t, err)

	var ownerID uuid.UUID
	err = db.Get(&ownerID, `
		INSERT INTO users (username, email, password_hash)
		VALUES ('owner', 'owner@example.com', 'hash')
		RETURNING user_id
	`)
	assert.NoError(t, err)

	teardown := func() {
		db.Close()
		container.Terminate(context.Background())
	}

	return db, ownerID, teardown
}

func TestTransactionWriteRepository_Save(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	repo := NewTransactionWriteRepository(db, nil)
	ctx := context.Background()

	fileURL := "https://files.example.com/receipt.jpg?dl=1"
	saved, err := repo.Save(ctx, ownerID, "Groceries", -42.5, &fileURL)
	assert.NoError(t, err)
	assert.NotNil(t, saved)

	assert.NotEqual(t, uuid.Nil, saved.TransactionID)
	assert.Equal(t, ownerID, saved.OwnerID)
	assert.Equal(t, "Groceries", saved.Text)
	assert.Equal(t, -42.5, saved.Amount)
	assert.NotNil(t, saved.FileURL)
	assert.Equal(t, fileURL, *saved.FileURL)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestTransactionWriteRepository_SaveWithoutAttachment(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	repo := NewTransactionWriteRepository(db, nil)
	ctx := context.Background()

	saved, err := repo.Save(ctx, ownerID, "Salary", 1000, nil)
	assert.NoError(t, err)
	assert.NotNil(t, saved)
	assert.Nil(t, saved.FileURL)
}

func TestTransactionReadRepository_ListByOwner(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	readRepo := NewTransactionReadRepository(db)
	ctx := context.Background()

	// Insert with explicit timestamps so ordering is deterministic.
	base := time.Now().UTC().Truncate(time.Second)
	for i, tx := range []struct {
		text   string
		amount float64
	}{
		{"Salary", 1000},
		{"Coffee", -3.5},
		{"Rent", -500},
	} {
		_, err := db.Exec(`
			INSERT INTO transactions (transaction_id, owner_id, text, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), ownerID, tx.text, tx.amount, base.Add(time.Duration(i)*time.Minute))
		assert.NoError(t, err)
	}

	transactions, err := readRepo.ListByOwner(ctx, ownerID)
	assert.NoError(t, err)
	assert.Len(t, transactions, 3)

	// Most recent first.
	assert.Equal(t, "Rent", transactions[0].Text)
	assert.Equal(t, "Coffee", transactions[1].Text)
	assert.Equal(t, "Salary", transactions[2].Text)

	t.Run("OtherOwnerSeesNothing", func(t *testing.T) {
		var otherID uuid.UUID
		err := db.Get(&otherID, `
			INSERT INTO users (username, email, password_hash)
			VALUES ('other', 'other@example.com', 'hash')
			RETURNING user_id
		`)
		assert.NoError(t, err)

		transactions, err := readRepo.ListByOwner(ctx, otherID)
		assert.NoError(t, err)
		assert.Empty(t, transactions)
	})
}

func TestTransactionWriteRepository_Update(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	repo := NewTransactionWriteRepository(db, nil)
	ctx := context.Background()

	fileURL := "https://files.example.com/receipt.jpg?dl=1"
	saved, err := repo.Save(ctx, ownerID, "Groceries", -42.5, &fileURL)
	assert.NoError(t, err)

	rows, err := repo.Update(ctx, ownerID, saved.TransactionID, "Weekly groceries", -55)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	readRepo := NewTransactionReadRepository(db)
	transactions, err := readRepo.ListByOwner(ctx, ownerID)
	assert.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, "Weekly groceries", transactions[0].Text)
	assert.Equal(t, float64(-55), transactions[0].Amount)

	// Edits never touch the attachment URL.
	assert.NotNil(t, transactions[0].FileURL)
	assert.Equal(t, fileURL, *transactions[0].FileURL)

	t.Run("UnknownID", func(t *testing.T) {
		rows, err := repo.Update(ctx, ownerID, uuid.New(), "x", 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})

	t.Run("WrongOwner", func(t *testing.T) {
		rows, err := repo.Update(ctx, uuid.New(), saved.TransactionID, "x", 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})
}

func TestTransactionWriteRepository_Delete(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	repo := NewTransactionWriteRepository(db, nil)
	ctx := context.Background()

	saved, err := repo.Save(ctx, ownerID, "Groceries", -42.5, nil)
	assert.NoError(t, err)

	t.Run("WrongOwner", func(t *testing.T) {
		rows, err := repo.Delete(ctx, uuid.New(), saved.TransactionID)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})

	rows, err := repo.Delete(ctx, ownerID, saved.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	t.Run("AlreadyDeleted", func(t *testing.T) {
		rows, err := repo.Delete(ctx, ownerID, saved.TransactionID)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})
}

func TestTransactionWriteRepository_UsesTransactionFromContext(t *testing.T) {
	db, ownerID, teardown := setupTransactionPostgresContainer(t)
	defer teardown()

	type ctxKey struct{}
	txGetter := func(ctx context.Context) *sqlx.Tx {
		tx, _ := ctx.Value(ctxKey{}).(*sqlx.Tx)
		return tx
	}

	repo := NewTransactionWriteRepository(db, txGetter)
	readRepo := NewTransactionReadRepository(db)

	tx, err := db.Beginx()
	assert.NoError(t, err)
	ctx := context.WithValue(context.Background(), ctxKey{}, tx)

	saved, err := repo.Save(ctx, ownerID, "Pending", 10, nil)
	assert.NoError(t, err)
	assert.NotNil(t, saved)

	// Rolled back writes never become visible.
	assert.NoError(t, tx.Rollback())

	transactions, err := readRepo.ListByOwner(context.Background(), ownerID)
	assert.NoError(t, err)
	assert.Empty(t, transactions)
}
