package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Password     []byte
	Bio          string
	Avatar       string
	ArticleCount int64
	IsStaff      bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// DisplayName is "First Last", falling back to the username.
func (user *User) DisplayName() string {
	name := user.FirstName
	if user.LastName != "" {
		if name != "" {
			name += " "
		}
		name += user.LastName
	}
	if name == "" {
		return user.Username
	}
	return name
}

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type UserClaim struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type"`

	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
