package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"informatik-booking/internal/access"
	"informatik-booking/internal/config"
	"informatik-booking/internal/jwt"
	"informatik-booking/internal/nonce"
	"informatik-booking/internal/storage"
)

const testAdmin = "info@informatik-ai.de"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	storage storage.Provider
}

// newTestEnv wires a router with a file store, the built-in policy and the
// default admin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prev := config.Cfg
	config.Cfg = &config.Config{Secret: "routes-test-secret", AdminTokenTTL: 5}
	t.Cleanup(func() { config.Cfg = prev })

	store := nonce.NewMemoryStore()
	prevStore := nonce.Store
	nonce.Store = store
	t.Cleanup(func() {
		store.Close()
		nonce.Store = prevStore
	})

	rbac := access.NewRBAC()
	if err := rbac.LoadPolicy(""); err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	rbac.SetRoles(testAdmin, access.RoleAdmin)

	provider := storage.NewFileProvider(filepath.Join(t.TempDir(), "calendar-data.json"))

	r := gin.New()
	r.Use(ErrorHandler(), InjectStorage(provider), InjectRBAC(rbac))
	return &testEnv{router: r, storage: provider}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, email string) http.Header {
	t.Helper()
	token, err := jwt.GenerateJWT(jwt.NewAdminClaim(email, 5))
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if message != "" && body["message"] != message {
		t.Errorf("message = %q, want %q", body["message"], message)
	}
}

func TestErrorHandlerHidesServerErrorCause(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, ErrTokenProvider)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	expectError(t, w, http.StatusInternalServerError, "An internal error occurred")
}

func TestGetErrorStatusWrapped(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrSlotNotFound, http.StatusNotFound},
		{jwt.ErrNonValidToken, http.StatusUnauthorized},
		{ErrInsufficientPermissions, http.StatusForbidden},
		{NewHTTPError(http.StatusTeapot, nil, "teapot"), http.StatusTeapot},
	}
	for _, tt := range tests {
		if got := GetErrorStatus(tt.err); got != tt.want {
			t.Errorf("GetErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	Health(&env.router.RouterGroup)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["message"] != "pong" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.router.GET("/me", AuthMiddleware(nil), func(c *gin.Context) {
		user, _ := GetUser(c)
		c.String(http.StatusOK, user)
	})

	claim := jwt.NewAdminClaim(testAdmin, 5)
	claim.ExpiresAt.Time = time.Now().Add(-time.Minute)
	token, err := jwt.GenerateJWT(claim)
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/me", nil, http.Header{"Authorization": {"Bearer " + token}})
	expectError(t, w, http.StatusUnauthorized, "")

	w = env.do(t, http.MethodGet, "/me", nil, bearer(t, testAdmin))
	if w.Code != http.StatusOK || w.Body.String() != testAdmin {
		t.Errorf("valid token: %d %q", w.Code, w.Body.String())
	}
}
