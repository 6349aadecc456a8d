package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/campushq/campus-backend/internal/response"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"

	RoleParticipant = "participant"
	RoleInstructor  = "instructor"
	RoleAdmin       = "admin"
)

// Claims is the identity context carried by every request. Tokens are
// issued by the campus identity platform; this service only validates
// them.
type Claims struct {
	jwt.RegisteredClaims
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
}

// Authenticator validates bearer tokens against the shared signing key.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator for the given HMAC secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ValidateToken parses and validates a JWT, returning the claims.
func (a *Authenticator) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RequireParticipant validates a participant JWT from the Authorization
// header.
func (a *Authenticator) RequireParticipant() gin.HandlerFunc {
	return a.require(response.ErrParticipantAccessOnly, RoleParticipant)
}

// RequireInstructor validates an instructor JWT from the Authorization
// header. Platform admins pass the same gate.
func (a *Authenticator) RequireInstructor() gin.HandlerFunc {
	return a.require(response.ErrInstructorAccessOnly, RoleInstructor, RoleAdmin)
}

func (a *Authenticator) require(roleErr response.ErrCode, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.extractAndValidateClaims(c)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if !roleAllowed(claims.Role, roles) {
			response.AbortFail(c, http.StatusForbidden, roleErr)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// RequireWSAuth validates an instructor JWT from the query param
// ?token=... Used for WebSocket upgrade requests, which cannot carry
// custom headers from browsers.
func (a *Authenticator) RequireWSAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		claims, err := a.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if !roleAllowed(claims.Role, []string{RoleInstructor, RoleAdmin}) {
			response.AbortFail(c, http.StatusForbidden, response.ErrInstructorAccessOnly)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func (a *Authenticator) extractAndValidateClaims(c *gin.Context) (*Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}
	if tokenStr == "" {
		return nil, fmt.Errorf("authorization header or token query required")
	}
	return a.ValidateToken(tokenStr)
}
