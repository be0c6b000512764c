package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"informatik-booking/internal/access"
	"informatik-booking/internal/client"
	"informatik-booking/internal/config"
	"informatik-booking/internal/google"
	"informatik-booking/internal/jwt"
	"informatik-booking/internal/slots"
	"informatik-booking/internal/storage"
)

type stubRelay struct{}

func (stubRelay) AuthCodeURL(state string) string { return "https://example.com/?state=" + state }

func (stubRelay) Exchange(ctx context.Context, code string) (google.Token, error) {
	return google.Token{AccessToken: "at"}, nil
}

func (stubRelay) Refresh(ctx context.Context, refreshToken string) (google.Token, error) {
	return google.Token{AccessToken: "at"}, nil
}

func testServer(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prev := config.Cfg
	config.Cfg = cfg
	t.Cleanup(func() { config.Cfg = prev })

	rbac := access.NewRBAC()
	if err := rbac.LoadPolicy(""); err != nil {
		t.Fatal(err)
	}

	return HTTPServer(Services{
		Storage:  storage.NewFileProvider(filepath.Join(t.TempDir(), "data.json")),
		RBAC:     rbac,
		OAuth:    stubRelay{},
		Calendar: google.NewConnector(config.GoogleConfig{}),
		StateTTL: 60,
	})
}

func TestHTTPServerRoutes(t *testing.T) {
	r := testServer(t, &config.Config{})

	for _, path := range []string{"/health", "/api/calendar-data", "/api/calendar-data/ics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d: %s", path, w.Code, w.Body.String())
		}
		if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
			t.Errorf("GET %s X-Frame-Options = %q", path, got)
		}
	}
}

func TestCORS(t *testing.T) {
	r := testServer(t, &config.Config{CORSOrigins: "https://informatik-ai.de"})

	req := httptest.NewRequest(http.MethodOptions, "/api/calendar-data", nil)
	req.Header.Set("Origin", "https://informatik-ai.de")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://informatik-ai.de" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/calendar-data", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestIPAccessControl(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(IPAccessControl([]string{"10.0.0.0/8", "not-a-cidr"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:1234", http.StatusOK},
		{"192.168.1.1:1234", http.StatusForbidden},
		{"127.0.0.1:1234", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.remote, w.Code, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList = %v", got)
	}
}

func TestMigrateLegacyCacheIntoFreshServer(t *testing.T) {
	const admin = "info@informatik-ai.de"
	gin.SetMode(gin.TestMode)
	prev := config.Cfg
	config.Cfg = &config.Config{Secret: "app-test-secret"}
	t.Cleanup(func() { config.Cfg = prev })

	rbac := access.NewRBAC()
	if err := rbac.LoadPolicy(""); err != nil {
		t.Fatal(err)
	}
	rbac.SetRoles(admin, access.RoleAdmin)

	dir := t.TempDir()
	store := storage.NewFileProvider(filepath.Join(dir, "data.json"))
	srv := httptest.NewServer(HTTPServer(Services{
		Storage:  store,
		RBAC:     rbac,
		OAuth:    stubRelay{},
		Calendar: google.NewConnector(config.GoogleConfig{}),
		StateTTL: 60,
	}))
	defer srv.Close()

	token, err := jwt.GenerateJWT(jwt.NewAdminClaim(admin, 5))
	if err != nil {
		t.Fatal(err)
	}
	list, err := slots.GenerateTimeSlots("2025-03-10", slots.DefaultWindow)
	if err != nil {
		t.Fatal(err)
	}
	legacyPath := filepath.Join(dir, "legacy.json")
	legacy := slots.CalendarData{Slots: list, LastUpdated: slots.NewTimestamp(time.Now().Add(-24 * time.Hour))}
	if err := client.NewCache(legacyPath).Store(legacy); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	svc := client.NewDataService(srv.URL, client.WithLegacyCache(legacyPath), client.WithAdminToken(token))

	// The first read stamps the empty store with the current time.
	if _, err := svc.GetCalendarData(ctx); err != nil {
		t.Fatalf("GetCalendarData: %v", err)
	}

	migrated, err := svc.MigrateFromLocalStorage(ctx, admin)
	if err != nil || !migrated {
		t.Fatalf("MigrateFromLocalStorage = %v, %v; want migrated", migrated, err)
	}
	if got := store.Load(ctx); len(got.Slots) != len(list) {
		t.Errorf("server holds %d slots, want %d", len(got.Slots), len(list))
	}
	if _, ok := client.NewCache(legacyPath).Load(); ok {
		t.Error("legacy cache kept after migration")
	}
}
