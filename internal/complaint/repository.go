package complaint

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"complaint-service/internal/metrics"

	"github.com/uptrace/bun"
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

func (r *Repository) Create(ctx context.Context, c *Complaint) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(c).Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", "complaints", time.Since(start), err)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Complaint, error) {
	start := time.Now()
	c := new(Complaint)
	err := r.db.NewSelect().
		Model(c).
		Relation("Account").
		Where("c.id = ?", id).
		Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "complaints", time.Since(start), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListForOwner pages through one student's non-anonymous complaints, newest
// first. Anonymous submissions are structurally ownerless and never appear.
func (r *Repository) ListForOwner(ctx context.Context, accountID int64, page, pageSize int) (Page, error) {
	start := time.Now()
	var items []Complaint
	total, err := r.db.NewSelect().
		Model(&items).
		Where("c.account_id = ?", accountID).
		Where("c.type = ?", TypeNonAnonymous).
		Order("created_at DESC", "id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		ScanAndCount(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "complaints", time.Since(start), err)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, page, pageSize), nil
}

// ListFiltered pages through complaints matching every set filter predicate.
// Search matches title OR description OR the submitter's username or email.
func (r *Repository) ListFiltered(ctx context.Context, f Filter, pageSize int) (Page, error) {
	start := time.Now()
	var items []Complaint
	q := r.db.NewSelect().
		Model(&items).
		Relation("Account")

	if f.Type != "" {
		q = q.Where("c.type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("c.category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("c.status = ?", f.Status)
	}
	if f.AssignedTo != "" {
		q = q.Where("lower(c.assigned_to) LIKE ?", contains(f.AssignedTo))
	}
	if f.Search != "" {
		needle := contains(f.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("lower(c.title) LIKE ?", needle).
				WhereOr("lower(c.description) LIKE ?", needle).
				WhereOr("lower(account.username) LIKE ?", needle).
				WhereOr("lower(account.email) LIKE ?", needle)
		})
	}

	page := f.Page
	if page < 1 {
		page = 1
	}

	total, err := q.
		Order("c.created_at DESC", "c.id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		ScanAndCount(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "complaints", time.Since(start), err)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, page, pageSize), nil
}

func (r *Repository) CountByStatus(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats
	var err error

	count := func(status Status) (int, error) {
		q := r.db.NewSelect().Model((*Complaint)(nil))
		if status != "" {
			q = q.Where("c.status = ?", status)
		}
		return q.Count(ctx)
	}

	if stats.Total, err = count(""); err == nil {
		if stats.Pending, err = count(StatusPending); err == nil {
			if stats.InProgress, err = count(StatusInProgress); err == nil {
				if stats.Resolved, err = count(StatusResolved); err == nil {
					stats.Closed, err = count(StatusClosed)
				}
			}
		}
	}
	r.metrics.Database.RecordQuery(ctx, "select", "complaints", time.Since(start), err)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// DistinctAssignees lists the assignee labels in use, for the filter UI
func (r *Repository) DistinctAssignees(ctx context.Context) ([]string, error) {
	start := time.Now()
	var assignees []string
	err := r.db.NewSelect().
		Model((*Complaint)(nil)).
		ColumnExpr("DISTINCT assigned_to").
		Where("c.assigned_to IS NOT NULL").
		Where("c.assigned_to <> ''").
		Order("assigned_to ASC").
		Scan(ctx, &assignees)
	r.metrics.Database.RecordQuery(ctx, "select", "complaints", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return assignees, nil
}

// UpdateStatus mutates triage state and refreshes the updated timestamp
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, assignedTo string) error {
	start := time.Now()
	res, err := r.db.NewUpdate().
		Model((*Complaint)(nil)).
		Set("status = ?", status).
		Set("assigned_to = ?", sql.NullString{String: assignedTo, Valid: assignedTo != ""}).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", "complaints", time.Since(start), err)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrComplaintNotFound
	}
	return nil
}

func contains(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func newPage(items []Complaint, total, page, pageSize int) Page {
	if items == nil {
		items = []Complaint{}
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
