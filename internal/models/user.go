package models

// User is the canonical representation of an authenticated account.
type User struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
	Organizations  []string `json:"organizations,omitempty"`
}

// Clone returns a deep copy so callers can't mutate shared session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.Organizations != nil {
		clone.Organizations = append([]string(nil), u.Organizations...)
	}
	return &clone
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthData is the data section of an authentication response.
type AuthData struct {
	Token string    `json:"token"`
	User  *WireUser `json:"user"`
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *AuthData `json:"data"`
}
