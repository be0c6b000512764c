package access

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

func loadDefault(t *testing.T) *RBAC {
	t.Helper()
	r := NewRBAC()
	if err := r.LoadPolicy(""); err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	return r
}

func TestDefaultPolicy(t *testing.T) {
	r := loadDefault(t)
	r.SetRoles("info@informatik-ai.de", RoleAdmin)

	cases := []struct {
		user, resource, action string
		want                   bool
	}{
		{"info@informatik-ai.de", ResourceCalendarData, ActionWrite, true},
		{"INFO@informatik-ai.de", ResourceCalendarData, ActionWrite, true},
		{"info@informatik-ai.de", ResourceCalendarData, ActionRead, true},
		{"someone@example.com", ResourceCalendarData, ActionWrite, false},
		{"someone@example.com", ResourceCalendarData, ActionRead, true},
		{"", ResourceCalendarData, ActionRead, true},
		{"", ResourceCalendarData, ActionWrite, false},
		{"", ResourceCalendarFeed, ActionRead, true},
	}
	for _, c := range cases {
		if got := r.Can(c.user, c.resource, c.action); got != c.want {
			t.Errorf("Can(%q, %s, %s) = %v, want %v", c.user, c.resource, c.action, got, c.want)
		}
	}
}

func TestRoleChangesInvalidateCache(t *testing.T) {
	r := loadDefault(t)
	user := "helper@example.com"

	if r.Can(user, ResourceCalendarData, ActionWrite) {
		t.Fatal("visitor must not write")
	}
	r.AssignRole(user, RoleAdmin)
	if !r.Can(user, ResourceCalendarData, ActionWrite) {
		t.Fatal("assigned admin should write")
	}
	if roles := r.GetUserRoles(user); !slices.Contains(roles, RoleAdmin) {
		t.Errorf("roles = %v, want admin", roles)
	}
	r.SetRoles(user)
	if r.Can(user, ResourceCalendarData, ActionWrite) {
		t.Fatal("cleared admin must not write")
	}
	if roles := r.GetUserRoles(user); len(roles) != 1 || roles[0] != RoleVisitor {
		t.Errorf("roles after clearing = %v, want default role", roles)
	}
}

func TestPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	policy := `
default_role: nobody
roles:
  nobody: {}
  editor:
    permissions:
      - resource: "*"
        actions: ["*"]
users:
  Editor@Example.com:
    roles: [editor]
`
	if err := os.WriteFile(path, []byte(policy), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRBAC()
	if err := r.LoadPolicy(path); err != nil {
		t.Fatal(err)
	}
	if !r.Can("editor@example.com", ResourceCalendarData, ActionWrite) {
		t.Error("wildcard editor should write")
	}
	if r.Can("other@example.com", ResourceCalendarData, ActionRead) {
		t.Error("default role without permissions must not read")
	}
}

func TestCanWithoutPolicy(t *testing.T) {
	if NewRBAC().Can("a@b.c", ResourceCalendarData, ActionRead) {
		t.Error("no policy must deny")
	}
}

func TestCanConcurrent(t *testing.T) {
	r := loadDefault(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Can("x@example.com", ResourceCalendarData, ActionWrite)
		}()
		go func() {
			defer wg.Done()
			r.SetRoles("x@example.com", RoleAdmin)
		}()
	}
	wg.Wait()
}

func TestValidEmail(t *testing.T) {
	cases := map[string]error{
		"":                      ErrMissingEmail,
		"   ":                   ErrMissingEmail,
		"ada@example.com":       nil,
		"ada.lovelace+x@ex.de":  nil,
		"@example.com":          ErrInvalidEmail,
		"ada@":                  ErrInvalidEmail,
		"ada":                   ErrInvalidEmail,
		"Ada <ada@example.com>": ErrInvalidEmail,
	}
	for in, want := range cases {
		if got := ValidEmail(in); !errors.Is(got, want) {
			t.Errorf("ValidEmail(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSameIdentity(t *testing.T) {
	if !SameIdentity("Info@Informatik-AI.de", "info@informatik-ai.de") {
		t.Error("case must not matter")
	}
	if SameIdentity("", "") {
		t.Error("empty identities never match")
	}
	if SameIdentity("a@example.com", "b@example.com") {
		t.Error("different addresses matched")
	}
}
