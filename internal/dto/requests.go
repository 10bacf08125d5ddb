package dto

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token for clients that cannot keep cookies
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateMeRequest changes the display name on the auth record
type UpdateMeRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// PasswordResetRequest asks for a reset link to be sent
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest sets a new password with a reset token
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ProfileRequest replaces a profile document
type ProfileRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
}

// ProfilePatchRequest changes the display name of a profile document
type ProfilePatchRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

// CreateTodoRequest creates a todo for the caller
type CreateTodoRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateTodoRequest changes a todo; absent fields are left untouched
type UpdateTodoRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}
