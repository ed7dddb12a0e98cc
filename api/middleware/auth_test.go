package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(keys []string) *gin.Engine {
	r := gin.New()
	r.Use(Auth(keys))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAuthNoKeysIsOpen(t *testing.T) {
	r := authRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want open access with no configured keys", w.Code)
	}
}

func TestAuthHeaderStyles(t *testing.T) {
	r := authRouter([]string{"secret-key"})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"x-api-key valid", "X-API-Key", "secret-key", http.StatusOK},
		{"bearer valid", "Authorization", "Bearer secret-key", http.StatusOK},
		{"x-api-key wrong", "X-API-Key", "wrong", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
