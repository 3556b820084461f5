package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Roles and resources are fixed for a single-venue deployment, so the model
// and policies ship embedded rather than as config files on disk.
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var policies = [][]string{
	{"staff", "session", "read"},
	{"staff", "session", "write"},
	{"staff", "staff", "read"},
	{"manager", "session", "force_close"},
	{"manager", "staff", "write"},
	{"manager", "sync", "retry"},
	{"manager", "settings", "write"},
	{"manager", "audit", "read"},
}

var grouping = [][]string{
	// Managers inherit everything staff can do.
	{"manager", "staff"},
}

func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}

	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("rbac policy %v: %w", p, err)
		}
	}
	for _, g := range grouping {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("rbac grouping %v: %w", g, err)
		}
	}
	return e, nil
}
