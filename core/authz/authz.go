package authz

import (
	"context"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/validation"
)

const anySubject = "*"

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && r.obj == p.obj
`

// Authorizer checks rule set roles with a casbin enforcer.
// Policies are (role subject, operation) pairs; public operations are granted to "*".
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

var _ validation.Authorizer = (*Authorizer)(nil)

// New seeds the policies from the rule sets.
func New(sets ...validation.RuleSet) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, errors.Wrap(err, "authz: model")
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "authz: enforcer")
	}

	a := &Authorizer{enforcer: enforcer}
	for _, rs := range sets {
		if err := a.Grant(rs); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Grant adds the policies of rs.
func (a *Authorizer) Grant(rs validation.RuleSet) error {
	if rs.IsPublic() {
		_, err := a.enforcer.AddPolicy(anySubject, rs.Operation)
		return errors.Wrapf(err, "authz: granting %s", rs.Operation)
	}
	for _, role := range rs.Roles {
		if _, err := a.enforcer.AddPolicy(SubjectFromRole(role), rs.Operation); err != nil {
			return errors.Wrapf(err, "authz: granting %s to %s", rs.Operation, role)
		}
	}
	return nil
}

func (a *Authorizer) Authorize(_ context.Context, p validation.Principal, rs validation.RuleSet) (bool, error) {
	roles := p.Roles
	if p.IsAnonymous() || len(roles) == 0 {
		roles = []string{""}
	}
	for _, role := range roles {
		ok, err := a.enforcer.Enforce(SubjectFromRole(role), rs.Operation)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func SubjectFromRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}
