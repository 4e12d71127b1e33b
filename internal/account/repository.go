package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"complaint-service/internal/metrics"

	"github.com/uptrace/bun"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrProfileNotFound = errors.New("profile not found")
)

type Repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: m,
	}
}

func (r *Repository) Insert(ctx context.Context, acct *Account) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(acct).Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", "accounts", time.Since(start), err)
	return err
}

func (r *Repository) Update(ctx context.Context, acct *Account) error {
	start := time.Now()
	_, err := r.db.NewUpdate().Model(acct).WherePK().Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", "accounts", time.Since(start), err)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	start := time.Now()
	acct := new(Account)
	err := r.db.NewSelect().Model(acct).Where("a.id = ?", id).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acct, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	start := time.Now()
	acct := new(Account)
	err := r.db.NewSelect().Model(acct).Where("a.username = ?", username).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acct, nil
}

// GetAllByEmail returns every account carrying the email, newest first.
// More than one result is possible because email is not storage-unique.
func (r *Repository) GetAllByEmail(ctx context.Context, email string) ([]Account, error) {
	start := time.Now()
	var accts []Account
	err := r.db.NewSelect().
		Model(&accts).
		Where("a.email = ?", email).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return accts, nil
}

func (r *Repository) ExistsUsername(ctx context.Context, username string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*Account)(nil)).
		Where("a.username = ?", username).
		Exists(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	return exists, err
}

func (r *Repository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*Account)(nil)).
		Where("a.email = ?", email).
		Exists(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	return exists, err
}

func (r *Repository) ExistsStudentID(ctx context.Context, studentID string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*Profile)(nil)).
		Where("p.student_id = ?", studentID).
		Exists(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "profiles", time.Since(start), err)
	return exists, err
}

func (r *Repository) InsertProfile(ctx context.Context, profile *Profile) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(profile).Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", "profiles", time.Since(start), err)
	return err
}

func (r *Repository) UpdateProfile(ctx context.Context, profile *Profile) error {
	start := time.Now()
	_, err := r.db.NewUpdate().Model(profile).WherePK().Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", "profiles", time.Since(start), err)
	return err
}

func (r *Repository) GetProfileByAccount(ctx context.Context, accountID int64) (*Profile, error) {
	start := time.Now()
	profile := new(Profile)
	err := r.db.NewSelect().Model(profile).Where("p.account_id = ?", accountID).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "profiles", time.Since(start), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// GetIdentity loads the account plus its profile, if any. A missing profile
// is not an error; the returned Identity is simply unprovisioned.
func (r *Repository) GetIdentity(ctx context.Context, accountID int64) (Identity, error) {
	acct, err := r.GetByID(ctx, accountID)
	if err != nil {
		return Identity{}, err
	}
	profile, err := r.GetProfileByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Identity{Account: acct}, nil
		}
		return Identity{}, err
	}
	return Identity{Account: acct, Profile: profile}, nil
}

func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	start := time.Now()
	_, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", "accounts", time.Since(start), err)
	return err
}

// EmailGroup is a set of accounts sharing one email, newest first.
type EmailGroup struct {
	Email    string
	Accounts []Account
}

// ListDuplicateEmailGroups finds every email carried by more than one
// account. Accounts without an email are ignored.
func (r *Repository) ListDuplicateEmailGroups(ctx context.Context) ([]EmailGroup, error) {
	start := time.Now()
	var emails []string
	err := r.db.NewSelect().
		Model((*Account)(nil)).
		Column("email").
		Where("a.email <> ''").
		Group("email").
		Having("count(*) > 1").
		Order("email ASC").
		Scan(ctx, &emails)
	r.metrics.Database.RecordQuery(ctx, "select", "accounts", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	groups := make([]EmailGroup, 0, len(emails))
	for _, email := range emails {
		accts, err := r.GetAllByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		groups = append(groups, EmailGroup{Email: email, Accounts: accts})
	}
	return groups, nil
}
