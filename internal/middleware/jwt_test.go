package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, userID int, role string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
		Role:   role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func gatedRouter(gate gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", gate, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequireInstructor(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	router := gatedRouter(auth.RequireInstructor())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"instructor allowed", signTestToken(t, 1, RoleInstructor), http.StatusOK},
		{"admin allowed", signTestToken(t, 2, RoleAdmin), http.StatusOK},
		{"participant rejected", signTestToken(t, 3, RoleParticipant), http.StatusForbidden},
		{"unknown role rejected", signTestToken(t, 4, "auditor"), http.StatusForbidden},
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireParticipant(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	router := gatedRouter(auth.RequireParticipant())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"participant allowed", signTestToken(t, 1, RoleParticipant), http.StatusOK},
		{"instructor rejected", signTestToken(t, 2, RoleInstructor), http.StatusForbidden},
		{"admin rejected", signTestToken(t, 3, RoleAdmin), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireWSAuth(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	router := gatedRouter(auth.RequireWSAuth())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"instructor allowed", "?token=" + signTestToken(t, 1, RoleInstructor), http.StatusOK},
		{"admin allowed", "?token=" + signTestToken(t, 2, RoleAdmin), http.StatusOK},
		{"participant rejected", "?token=" + signTestToken(t, 3, RoleParticipant), http.StatusForbidden},
		{"missing token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
