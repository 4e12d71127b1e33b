package complaint

import (
	"time"

	"complaint-service/internal/account"

	"github.com/uptrace/bun"
)

type Type string

const (
	TypeAnonymous    Type = "anonymous"
	TypeNonAnonymous Type = "non_anonymous"
)

type Category string

const (
	CategoryExam       Category = "exam"
	CategoryFees       Category = "fees"
	CategoryFacilities Category = "facilities"
	CategoryLecturer   Category = "lecturer"
	CategoryOther      Category = "other"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Complaint is a student submission. AccountID is NULL for anonymous
// complaints (no identity is stored, not merely hidden) and goes NULL again
// if the owning account is ever removed.
type Complaint struct {
	bun.BaseModel `bun:"table:complaints,alias:c"`

	ID          int64            `bun:"id,pk,autoincrement" json:"id"`
	AccountID   int64            `bun:"account_id,nullzero" json:"accountId,omitempty"`
	Account     *account.Account `bun:"rel:belongs-to,join:account_id=id,on_delete:SET NULL" json:"account,omitempty"`
	Type        Type             `bun:"type,notnull" json:"type"`
	Category    Category         `bun:"category,nullzero" json:"category,omitempty"`
	Title       string           `bun:"title,notnull" json:"title"`
	Description string           `bun:"description,notnull" json:"description"`
	Attachment  string           `bun:"attachment,nullzero" json:"attachment,omitempty"`
	Status      Status           `bun:"status,notnull" json:"status"`
	AssignedTo  string           `bun:"assigned_to,nullzero" json:"assignedTo,omitempty"`
	CreatedAt   time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time        `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// SubmitRequest carries a complaint submission. Category is required for
// non-anonymous complaints and ignored for anonymous ones.
type SubmitRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"omitempty,oneof=exam fees facilities lecturer other"`
}

// StatusUpdateRequest mutates triage state on the detail view
type StatusUpdateRequest struct {
	Status     string `json:"status" validate:"required,oneof=pending in_progress resolved closed"`
	AssignedTo string `json:"assignedTo" validate:"omitempty,max=100"`
}

// Filter composes the admin dashboard predicates; all set fields must match
// (AND), while Search matches title OR description OR submitter identity.
type Filter struct {
	Type       string
	Category   string
	Status     string
	AssignedTo string
	Search     string
	Page       int
}

// Page is one page of complaints, newest first
type Page struct {
	Items      []Complaint `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Stats counts complaints by status for the admin dashboard
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

// DashboardData is the student landing payload
type DashboardData struct {
	Recent []Complaint `json:"recent"`
	Total  int         `json:"total"`
}

// AdminDashboardData is the admin landing payload
type AdminDashboardData struct {
	Complaints Page     `json:"complaints"`
	Stats      Stats    `json:"stats"`
	Assignees  []string `json:"assignees"`
}
