package auth

import "complaint-service/internal/account"

// RegisterRequest is the request body for registration. The role field is
// deliberately absent: registration always creates a student profile.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=150"`
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"fullName" validate:"required,max=150"`
	StudentID       string `json:"studentId" validate:"omitempty,max=50"`
	Password        string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// LoginRequest is the request body for login. Identifier accepts either a
// username or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// PasswordResetRequest asks for a reset link by email
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SetPasswordRequest carries the new credential pair on reset confirmation
type SetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// LoginResponse tells the client which landing page to route to
type LoginResponse struct {
	Role    account.Role     `json:"role"`
	Account *account.Account `json:"account"`
}

// RegisterResponse confirms creation without logging the user in
type RegisterResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// StatusResponse is a generic confirmation payload
type StatusResponse struct {
	Status string `json:"status"`
}
