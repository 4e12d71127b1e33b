package account_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"complaint-service/internal/account"
	"complaint-service/internal/metrics"
	"complaint-service/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func seed(t *testing.T, db *bun.DB, username, email string, active bool, createdAt time.Time) *account.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	acct := &account.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     active,
		CreatedAt:    createdAt,
	}
	_, err = db.NewInsert().Model(acct).Exec(context.Background())
	require.NoError(t, err)
	return acct
}

func TestCleanupService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	now := time.Now()

	t.Run("NoDuplicates", func(t *testing.T) {
		db := testdb.New(t)
		repo := account.NewRepository(db, metrics.NewMock())
		seed(t, db, "alice", "alice@example.com", true, now)
		seed(t, db, "bob", "bob@example.com", true, now)

		report, err := account.NewCleanupService(repo, logger).Run(context.Background(), false)
		require.NoError(t, err)
		assert.Empty(t, report.Groups)
		assert.Empty(t, report.Deactivated)
	})

	t.Run("DryRunChangesNothing", func(t *testing.T) {
		db := testdb.New(t)
		repo := account.NewRepository(db, metrics.NewMock())
		seed(t, db, "alice1", "alice@example.com", true, now.Add(-48*time.Hour))
		seed(t, db, "alice2", "alice@example.com", true, now)

		report, err := account.NewCleanupService(repo, logger).Run(context.Background(), true)
		require.NoError(t, err)
		assert.True(t, report.DryRun)
		require.Len(t, report.Groups, 1)
		assert.Len(t, report.Groups[0].Accounts, 2)
		assert.Empty(t, report.Deactivated)

		// Every account is still active.
		accts, err := repo.GetAllByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		for _, acct := range accts {
			assert.True(t, acct.IsActive)
		}
	})

	t.Run("KeepsNewestPerGroup", func(t *testing.T) {
		db := testdb.New(t)
		repo := account.NewRepository(db, metrics.NewMock())

		oldest := seed(t, db, "carol_oldest", "carol@example.com", true, now.Add(-72*time.Hour))
		middle := seed(t, db, "carol_middle", "carol@example.com", true, now.Add(-48*time.Hour))
		newest := seed(t, db, "carol_newest", "carol@example.com", true, now.Add(-24*time.Hour))
		unrelated := seed(t, db, "dave", "dave@example.com", true, now)

		report, err := account.NewCleanupService(repo, logger).Run(context.Background(), false)
		require.NoError(t, err)
		require.Len(t, report.Groups, 1)
		assert.Len(t, report.Deactivated, 2)

		check := func(id int64, wantActive bool) {
			acct, err := repo.GetByID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, wantActive, acct.IsActive, "account %d", id)
		}
		check(newest.ID, true)
		check(middle.ID, false)
		check(oldest.ID, false)
		check(unrelated.ID, true)
	})

	t.Run("MultipleGroups", func(t *testing.T) {
		db := testdb.New(t)
		repo := account.NewRepository(db, metrics.NewMock())

		seed(t, db, "eve1", "eve@example.com", true, now.Add(-time.Hour))
		seed(t, db, "eve2", "eve@example.com", true, now)
		seed(t, db, "frank1", "frank@example.com", true, now.Add(-time.Hour))
		seed(t, db, "frank2", "frank@example.com", true, now)

		report, err := account.NewCleanupService(repo, logger).Run(context.Background(), false)
		require.NoError(t, err)
		assert.Len(t, report.Groups, 2)
		assert.Len(t, report.Deactivated, 2)
	})

	t.Run("AlreadyInactiveStillCounted", func(t *testing.T) {
		db := testdb.New(t)
		repo := account.NewRepository(db, metrics.NewMock())

		// The newest account survives even if an older one is already
		// inactive; deactivation is idempotent.
		seed(t, db, "grace1", "grace@example.com", false, now.Add(-time.Hour))
		newest := seed(t, db, "grace2", "grace@example.com", true, now)

		report, err := account.NewCleanupService(repo, logger).Run(context.Background(), false)
		require.NoError(t, err)
		require.Len(t, report.Groups, 1)
		assert.Len(t, report.Deactivated, 1)

		acct, err := repo.GetByID(context.Background(), newest.ID)
		require.NoError(t, err)
		assert.True(t, acct.IsActive)
	})
}

func TestGetIdentity(t *testing.T) {
	db := testdb.New(t)
	repo := account.NewRepository(db, metrics.NewMock())
	ctx := context.Background()

	acct := seed(t, db, "henry", "henry@example.com", true, time.Now())

	// Unprovisioned: no profile yet.
	identity, err := repo.GetIdentity(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, identity.Provisioned())
	assert.Equal(t, account.RoleStudent, identity.Role())
	assert.False(t, identity.IsAdmin())
	assert.Equal(t, "henry", identity.DisplayName())

	profile := &account.Profile{
		AccountID:     acct.ID,
		FullName:      "Henry Example",
		Role:          account.RoleAdmin,
		EmailVerified: true,
	}
	require.NoError(t, repo.InsertProfile(ctx, profile))

	identity, err = repo.GetIdentity(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, identity.Provisioned())
	assert.True(t, identity.IsAdmin())
	assert.Equal(t, "Henry Example", identity.DisplayName())

	_, err = repo.GetIdentity(ctx, 99999)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}
