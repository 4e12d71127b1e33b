package complaint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"complaint-service/internal/account"
	"complaint-service/internal/events"
)

var (
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrNotPermitted      = errors.New("not permitted to view this complaint")
	ErrAdminOnly         = errors.New("administrator access required")
	ErrStudentOnly       = errors.New("students only")
)

const (
	adminPageSize   = 15
	studentPageSize = 10
	dashboardRecent = 5
)

type Service struct {
	repo     *Repository
	producer events.Producer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo *Repository, producer events.Producer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitNonAnonymous records a complaint owned by the calling student.
func (s *Service) SubmitNonAnonymous(ctx context.Context, caller account.Identity, req SubmitRequest, attachment string) (*Complaint, error) {
	if caller.IsAdmin() {
		return nil, ErrStudentOnly
	}

	c := &Complaint{
		AccountID:   caller.Account.ID,
		Type:        TypeNonAnonymous,
		Category:    Category(req.Category),
		Title:       req.Title,
		Description: req.Description,
		Attachment:  attachment,
		Status:      StatusPending,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "complaint submitted",
		"id", c.ID,
		"type", c.Type,
		"category", c.Category,
	)
	s.publishSubmitted(c)
	return c, nil
}

// SubmitAnonymous records a complaint with no owner reference at all. The
// caller must still be authenticated, but their identity is discarded before
// the row is written, so anonymity cannot be reversed later.
func (s *Service) SubmitAnonymous(ctx context.Context, caller account.Identity, req SubmitRequest, attachment string) (*Complaint, error) {
	if caller.IsAdmin() {
		return nil, ErrStudentOnly
	}

	c := &Complaint{
		Type:        TypeAnonymous,
		Category:    CategoryOther,
		Title:       req.Title,
		Description: req.Description,
		Attachment:  attachment,
		Status:      StatusPending,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "anonymous complaint submitted", "id", c.ID)
	s.publishSubmitted(c)
	return c, nil
}

// Dashboard returns the student's recent complaints and total count.
func (s *Service) Dashboard(ctx context.Context, caller account.Identity) (DashboardData, error) {
	page, err := s.repo.ListForOwner(ctx, caller.Account.ID, 1, dashboardRecent)
	if err != nil {
		return DashboardData{}, err
	}
	return DashboardData{Recent: page.Items, Total: page.Total}, nil
}

// MyComplaints pages through the caller's own non-anonymous complaints. The
// scoping is applied here, not from request parameters, so it cannot be
// bypassed by filters.
func (s *Service) MyComplaints(ctx context.Context, caller account.Identity, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.ListForOwner(ctx, caller.Account.ID, page, studentPageSize)
}

// AdminList serves the triage dashboard: filtered page, status counts and
// the distinct assignee labels.
func (s *Service) AdminList(ctx context.Context, caller account.Identity, f Filter) (AdminDashboardData, error) {
	if !caller.IsAdmin() {
		return AdminDashboardData{}, ErrAdminOnly
	}

	page, err := s.repo.ListFiltered(ctx, f, adminPageSize)
	if err != nil {
		return AdminDashboardData{}, err
	}
	stats, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return AdminDashboardData{}, err
	}
	assignees, err := s.repo.DistinctAssignees(ctx)
	if err != nil {
		return AdminDashboardData{}, err
	}

	return AdminDashboardData{
		Complaints: page,
		Stats:      stats,
		Assignees:  assignees,
	}, nil
}

// Detail enforces the access rule: admins see everything; a student sees
// only a complaint they own that is not anonymous.
func (s *Service) Detail(ctx context.Context, caller account.Identity, id int64) (*Complaint, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if caller.IsAdmin() {
		return c, nil
	}
	// Callers without a profile are denied outright on the detail view.
	if !caller.Provisioned() {
		return nil, ErrNotPermitted
	}
	if c.Type == TypeAnonymous || c.AccountID != caller.Account.ID {
		return nil, ErrNotPermitted
	}
	return c, nil
}

// UpdateStatus mutates triage state from the detail view. Restricted to
// administrators; the ability of an owning student to reach the detail view
// does not extend to mutating it.
func (s *Service) UpdateStatus(ctx context.Context, caller account.Identity, id int64, req StatusUpdateRequest) (*Complaint, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}

	// The detail access rule still applies to the mutation path.
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, Status(req.Status), req.AssignedTo); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "complaint status updated",
		"id", id,
		"status", req.Status,
		"assigned_to", req.AssignedTo,
	)
	return s.repo.GetByID(ctx, id)
}

func (s *Service) publishSubmitted(c *Complaint) {
	if s.producer == nil {
		return
	}
	event := events.ComplaintSubmitted{
		ComplaintID: c.ID,
		Type:        string(c.Type),
		Category:    string(c.Category),
		Title:       c.Title,
		At:          s.now(),
	}
	if err := s.producer.Publish(fmt.Sprintf("complaint-%d", c.ID), event); err != nil {
		s.logger.Error("failed to publish event", "complaint_id", c.ID, "error", err)
	}
}
