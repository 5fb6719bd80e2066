package guard

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
	"gopkg.in/yaml.v3"
)

// RoleAuthenticated is held by every signed-in user.
const RoleAuthenticated = "authenticated"

//go:embed routes.yaml
var defaultRoutes []byte

const rbacModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj)
`

type routeFile struct {
	Roles  map[string][]string `yaml:"roles"`
	Routes []routeRule         `yaml:"routes"`
}

type routeRule struct {
	Role  string   `yaml:"role"`
	Paths []string `yaml:"paths"`
}

// Routes is the compiled route table.
type Routes struct {
	patterns []string
	enforcer *casbin.SyncedEnforcer
}

// DefaultRoutes compiles the embedded route table.
func DefaultRoutes() (*Routes, error) {
	return LoadRoutes(defaultRoutes)
}

// LoadRoutes compiles a YAML route table into an RBAC policy.
func LoadRoutes(data []byte) (*Routes, error) {
	var file routeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load route model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create route enforcer: %w", err)
	}

	routes := &Routes{enforcer: enforcer}
	for role, inherits := range file.Roles {
		for _, parent := range inherits {
			if _, err := enforcer.AddGroupingPolicy(subject(role), subject(parent)); err != nil {
				return nil, fmt.Errorf("failed to add role %s: %w", role, err)
			}
		}
	}
	for i, rule := range file.Routes {
		if rule.Role == "" {
			return nil, fmt.Errorf("route rule %d has no role", i)
		}
		if rule.Role != RoleAuthenticated {
			if _, ok := file.Roles[rule.Role]; !ok {
				return nil, fmt.Errorf("route rule %d uses undeclared role %q", i, rule.Role)
			}
		}
		for _, path := range rule.Paths {
			if !strings.HasPrefix(path, "/") {
				return nil, fmt.Errorf("route path %q must start with /", path)
			}
			if _, err := enforcer.AddPolicy(subject(rule.Role), path); err != nil {
				return nil, fmt.Errorf("failed to add route %s: %w", path, err)
			}
			if !slices.Contains(routes.patterns, path) {
				routes.patterns = append(routes.patterns, path)
			}
		}
	}
	return routes, nil
}

func subject(role string) string {
	return "role:" + role
}

// Protected reports whether path needs a signed-in user.
func (r *Routes) Protected(path string) bool {
	for _, pattern := range r.patterns {
		if util.KeyMatch2(path, pattern) {
			return true
		}
	}
	return false
}

// Allows reports whether a signed-in user holding roles may open path.
func (r *Routes) Allows(roles []string, path string) (bool, error) {
	for _, role := range append([]string{RoleAuthenticated}, roles...) {
		ok, err := r.enforcer.Enforce(subject(role), path)
		if err != nil {
			return false, fmt.Errorf("failed to check route %s: %w", path, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
