package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"voicecapture/internal/config"
)

func newGuardedRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	guard := NewGuard(config.AdminConfig{Token: token})
	router.DELETE("/thing", guard.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": IsAdmin(c)})
	})
	return router
}

func doDelete(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/thing", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGuardDisabledPassesThrough(t *testing.T) {
	rec := doDelete(newGuardedRouter(""), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without configured token, got %d", rec.Code)
	}
	if rec.Body.String() != `{"admin":false}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGuardRequiresToken(t *testing.T) {
	router := newGuardedRouter("s3cret")
	cases := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"lowercase scheme", map[string]string{"Authorization": "bearer s3cret"}, http.StatusOK},
		{"admin header", map[string]string{AdminHeader: "s3cret"}, http.StatusOK},
		{"basic scheme ignored", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := doDelete(router, tc.headers); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
