package access

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	RoleAdmin   = "admin"
	RoleVisitor = "visitor"

	ResourceCalendarData = "calendar-data"
	ResourceCalendarFeed = "calendar-feed"

	ActionRead  = "read"
	ActionWrite = "write"
)

//go:embed policy.yaml
var defaultPolicy []byte

type Permission struct {
	Resource string   `yaml:"resource"`
	Actions  []string `yaml:"actions"`
}

type Role struct {
	Description string       `yaml:"description"`
	Permissions []Permission `yaml:"permissions"`
}

type RBACPolicy struct {
	DefaultRole string          `yaml:"default_role"`
	Roles       map[string]Role `yaml:"roles"`
	Users       map[string]struct {
		Roles []string `yaml:"roles"`
	} `yaml:"users"`
	Inheritance map[string][]string `yaml:"inheritance"`
}

// RBAC answers "may this identity do that". Identities are email
// addresses and compared case-insensitively.
type RBAC struct {
	policy      *RBACPolicy
	userRoles   map[string][]string // userID -> roles
	mu          sync.RWMutex
	policyCache map[string]map[string]bool // userID -> "resource:action" -> allowed
}

var (
	rbacInstance *RBAC
	rbacOnce     sync.Once
)

func NewRBAC() *RBAC {
	return &RBAC{
		userRoles:   make(map[string][]string),
		policyCache: make(map[string]map[string]bool),
	}
}

// GetRBAC returns the process-wide RBAC instance
func GetRBAC() *RBAC {
	rbacOnce.Do(func() {
		rbacInstance = NewRBAC()
	})
	return rbacInstance
}

func normalizeUser(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// LoadPolicy loads the RBAC policy from a YAML file, or the built-in policy
// when path is empty.
func (r *RBAC) LoadPolicy(path string) error {
	if path == "" {
		return r.LoadPolicyBytes(defaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	return r.LoadPolicyBytes(data)
}

func (r *RBAC) LoadPolicyBytes(data []byte) error {
	var policy RBACPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	r.mu.Lock()
	r.policy = &policy
	r.userRoles = make(map[string][]string)
	for userID, userData := range policy.Users {
		r.userRoles[normalizeUser(userID)] = userData.Roles
	}
	r.policyCache = make(map[string]map[string]bool)
	r.mu.Unlock()

	slog.Info("RBAC policy loaded", "roles", len(policy.Roles), "users", len(policy.Users))
	return nil
}

// AssignRole assigns one or more roles to a user
func (r *RBAC) AssignRole(userID string, roles ...string) {
	userID = normalizeUser(userID)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userRoles[userID] = append(r.userRoles[userID], roles...)
	delete(r.policyCache, userID)

	slog.Debug("Roles assigned", "userID", userID, "roles", roles)
}

// SetRoles replaces all roles for a user
func (r *RBAC) SetRoles(userID string, roles ...string) {
	userID = normalizeUser(userID)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userRoles[userID] = roles
	delete(r.policyCache, userID)
}

// GetUserRoles returns all roles for a user (including inherited)
func (r *RBAC) GetUserRoles(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userRolesLocked(normalizeUser(userID))
}

func (r *RBAC) userRolesLocked(userID string) []string {
	directRoles := r.userRoles[userID]
	if userID == "" {
		directRoles = nil
	}

	if len(directRoles) == 0 {
		if r.policy == nil || r.policy.DefaultRole == "" {
			return []string{}
		}
		directRoles = []string{r.policy.DefaultRole}
	}

	allRoles := make(map[string]bool)
	for _, role := range directRoles {
		allRoles[role] = true
		r.addInheritedRoles(role, allRoles)
	}

	result := make([]string, 0, len(allRoles))
	for role := range allRoles {
		result = append(result, role)
	}
	return result
}

// addInheritedRoles recursively adds inherited roles
func (r *RBAC) addInheritedRoles(role string, roles map[string]bool) {
	if r.policy == nil || r.policy.Inheritance == nil {
		return
	}

	for _, inheritedRole := range r.policy.Inheritance[role] {
		if !roles[inheritedRole] {
			roles[inheritedRole] = true
			r.addInheritedRoles(inheritedRole, roles)
		}
	}
}

// Can checks if a user can perform an action on a resource
func (r *RBAC) Can(userID, resource, action string) bool {
	userID = normalizeUser(userID)
	cacheKey := resource + ":" + action

	r.mu.RLock()
	if r.policy == nil {
		r.mu.RUnlock()
		slog.Warn("RBAC policy not loaded")
		return false
	}
	if allowed, found := r.policyCache[userID][cacheKey]; found {
		r.mu.RUnlock()
		return allowed
	}
	allowed := r.allowedLocked(userID, resource, action)
	r.mu.RUnlock()

	r.mu.Lock()
	if r.policyCache[userID] == nil {
		r.policyCache[userID] = make(map[string]bool)
	}
	r.policyCache[userID][cacheKey] = allowed
	r.mu.Unlock()

	return allowed
}

func (r *RBAC) allowedLocked(userID, resource, action string) bool {
	for _, roleName := range r.userRolesLocked(userID) {
		role, exists := r.policy.Roles[roleName]
		if !exists {
			continue
		}
		for _, perm := range role.Permissions {
			if perm.Resource != "*" && perm.Resource != resource {
				continue
			}
			for _, act := range perm.Actions {
				if act == "*" || act == action {
					return true
				}
			}
		}
	}
	return false
}
