package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.POST("/api/v1/documents/:id/process", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name            string
		allowed         []string
		method          string
		origin          string
		wantCode        int
		wantOrigin      string
		wantCredentials string
	}{
		{name: "preflight listed", allowed: []string{"http://localhost:5173"}, method: http.MethodOptions, origin: "http://localhost:5173", wantCode: http.StatusNoContent, wantOrigin: "http://localhost:5173", wantCredentials: "true"},
		{name: "post listed", allowed: []string{"http://localhost:5173"}, method: http.MethodPost, origin: "http://localhost:5173", wantCode: http.StatusOK, wantOrigin: "http://localhost:5173", wantCredentials: "true"},
		{name: "trailing slash in config", allowed: []string{" https://app.example/ "}, method: http.MethodPost, origin: "https://app.example", wantCode: http.StatusOK, wantOrigin: "https://app.example", wantCredentials: "true"},
		{name: "wildcard without credentials", allowed: []string{"*"}, method: http.MethodPost, origin: "https://other.example", wantCode: http.StatusOK, wantOrigin: "https://other.example"},
		{name: "unlisted origin", allowed: []string{"http://localhost:5173"}, method: http.MethodPost, origin: "https://evil.example", wantCode: http.StatusOK},
		{name: "unlisted preflight still short-circuits", allowed: nil, method: http.MethodOptions, origin: "https://evil.example", wantCode: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/documents/123/process", nil)
			req.Header.Set("Origin", tc.origin)
			resp := httptest.NewRecorder()
			newCORSRouter(tc.allowed).ServeHTTP(resp, req)

			if resp.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, resp.Code)
			}
			h := resp.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("expected Allow-Origin %q, got %q", tc.wantOrigin, got)
			}
			if got := h.Get("Access-Control-Allow-Credentials"); got != tc.wantCredentials {
				t.Fatalf("expected Allow-Credentials %q, got %q", tc.wantCredentials, got)
			}
			if tc.wantOrigin == "" {
				return
			}
			if got := h.Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Request-Id" {
				t.Fatalf("unexpected Allow-Headers %q", got)
			}
			if got := h.Get("Access-Control-Max-Age"); got != "600" {
				t.Fatalf("expected Max-Age 600, got %q", got)
			}
		})
	}
}
