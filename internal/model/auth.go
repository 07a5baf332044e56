package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthUser is the identity carried by a verified access token.
type AuthUser struct {
	ID   string
	Role string
}

func (u *AuthUser) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type User struct {
	ID           string
	Email        *string
	PasswordHash *string
	FirstName    string
	LastName     string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"isAdmin"`
}

func (u *User) Response() UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsAdmin:   u.Role == RoleAdmin,
	}
	if u.Email != nil {
		resp.Email = *u.Email
	}
	return resp
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int64        `json:"expiresIn"`
}

type RefreshToken struct {
	ID        int64
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type AdminSession struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type AdminSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AdminUserResponse struct {
	Username      string    `json:"username"`
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
