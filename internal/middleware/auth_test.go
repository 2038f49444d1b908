package middleware

import (
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newRouter(cfg *config.Config, roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", AuthMiddleware(cfg), RoleMiddleware(roles...), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	return r
}

func doGet(r http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthAndRole(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	token := func(role model.UserRole) string {
		u := &model.User{Role: role, Email: "x@example.com"}
		u.ID = 7
		tok, err := util.GenerateJWT(u, cfg.JWT.Secret, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT: %v", err)
		}
		return tok
	}

	r := newRouter(cfg, model.Teacher)
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "abc", http.StatusUnauthorized},
		{"student forbidden", token(model.Student), http.StatusForbidden},
		{"teacher allowed", token(model.Teacher), http.StatusOK},
		{"admin passes every gate", token(model.Admin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doGet(r, tt.token); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuthRejectsOtherSecret(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	u := &model.User{Role: model.Teacher}
	u.ID = 1
	tok, _ := util.GenerateJWT(u, "another-secret", time.Hour)
	if got := doGet(newRouter(cfg, model.Teacher), tok); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
}
