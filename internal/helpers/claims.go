package helpers

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

// CustomClaims is the payload of a Supabase access token.
type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Identity extracts what the rest of the app needs from the token.
func (c *CustomClaims) Identity() *models.Identity {
	id := &models.Identity{Subject: c.Subject, Email: c.Email}
	for _, key := range []string{"full_name", "name"} {
		if name, ok := c.UserMetadata[key].(string); ok && name != "" {
			id.Name = name
			break
		}
	}
	return id
}

// EnhancedClaims is a verified identity joined with its stored profile.
type EnhancedClaims struct {
	Identity *models.Identity
	UserID   uuid.UUID
	Email    string
	Role     models.Role
	Premium  bool
}

func NewEnhancedClaims(id *models.Identity, u *models.User, premium bool) *EnhancedClaims {
	return &EnhancedClaims{
		Identity: id,
		UserID:   u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Premium:  premium,
	}
}

func (ec *EnhancedClaims) IsAdmin() bool {
	return ec.Role == models.RoleAdmin
}

// Actor is the view of the caller the services authorize against.
func (ec *EnhancedClaims) Actor(ip string) *models.Actor {
	if ec == nil {
		return nil
	}
	return &models.Actor{UserID: ec.UserID, Role: ec.Role, Premium: ec.Premium, IP: ip}
}
