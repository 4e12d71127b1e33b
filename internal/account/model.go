package account

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Account is an authenticable identity. Accounts are never deleted, only
// deactivated. Email is intentionally NOT unique at the storage layer; see
// the duplicate-email cleanup command and the login tie-break.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	Email        string    `bun:"email,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	IsActive     bool      `bun:"is_active,notnull" json:"isActive"`
	IsSuperuser  bool      `bun:"is_superuser,notnull,default:false" json:"-"`
	LastLogin    time.Time `bun:"last_login,nullzero" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Profile carries role and metadata attached one-to-one to an Account.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID            int64    `bun:"id,pk,autoincrement" json:"id"`
	AccountID     int64    `bun:"account_id,unique,notnull" json:"accountId"`
	Account       *Account `bun:"rel:belongs-to,join:account_id=id,on_delete:CASCADE" json:"-"`
	FullName      string   `bun:"full_name,notnull" json:"fullName"`
	Role          Role     `bun:"role,notnull" json:"role"`
	StudentID     string   `bun:"student_id,unique,nullzero" json:"studentId,omitempty"`
	EmailVerified bool     `bun:"email_verified,notnull" json:"emailVerified"`
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p *Profile) IsStudent() bool {
	return p.Role == RoleStudent
}

// Identity pairs an Account with its Profile. Profile is nil while the
// account is unprovisioned; login provisions one before handing the identity
// out.
type Identity struct {
	Account *Account
	Profile *Profile
}

func (i Identity) Provisioned() bool {
	return i.Profile != nil
}

// Role reports the effective role. Unprovisioned identities are treated as
// students for dashboard purposes.
func (i Identity) Role() Role {
	if i.Profile == nil {
		return RoleStudent
	}
	return i.Profile.Role
}

func (i Identity) IsAdmin() bool {
	return i.Profile != nil && i.Profile.IsAdmin()
}

// DisplayName falls back to the username when no profile name is set.
func (i Identity) DisplayName() string {
	if i.Profile != nil && i.Profile.FullName != "" {
		return i.Profile.FullName
	}
	return i.Account.Username
}
