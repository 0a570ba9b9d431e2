package ratelimit

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Policy names
const (
	PolicyAPI           = "api"
	PolicyLogin         = "login"
	PolicyRegister      = "register"
	PolicyPasswordReset = "password-reset"
	PolicyReportsExport = "reports-export"
	PolicyUploads       = "uploads"
	PolicyPublic        = "public"
	PolicyNotifications = "notifications"
)

// Identity keys
const (
	KeyUserOrIP = "user-or-ip"
	KeyIP       = "ip"
)

const defaultWindow = time.Minute

// Identity is who a request comes from. UserID is empty for anonymous requests.
type Identity struct {
	UserID string
	IP     string
}

type KeyFunc func(id Identity) string

// ByUserOrIP keys authenticated requests by user and the others by source address.
func ByUserOrIP(id Identity) string {
	if id.UserID != "" {
		return "user:" + id.UserID
	}
	return ByIP(id)
}

func ByIP(id Identity) string { return "ip:" + id.IP }

var keyFuncs = map[string]KeyFunc{
	KeyUserOrIP: ByUserOrIP,
	KeyIP:       ByIP,
}

// Policy allows Max requests per Window and identity.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
	KeyBy  string // KeyUserOrIP | KeyIP
}

func (p Policy) Key(id Identity) string {
	return keyFuncs[p.KeyBy](id)
}

func (p Policy) check() error {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(p.Name, "name"),
		vala.GreaterThan(p.Max, 0, "max"),
		vala.GreaterThan(int(p.Window/time.Millisecond), 0, "window"),
	).Check(); err != nil {
		return errors.Wrapf(err, "policy %q", p.Name)
	}
	if _, ok := keyFuncs[p.KeyBy]; !ok {
		return errors.Errorf("policy %q: unknown key %q", p.Name, p.KeyBy)
	}
	return nil
}

func DefaultPolicies() []Policy {
	return []Policy{
		{Name: PolicyAPI, Max: 60, Window: defaultWindow, KeyBy: KeyUserOrIP},
		{Name: PolicyLogin, Max: 5, Window: defaultWindow, KeyBy: KeyIP},
		{Name: PolicyRegister, Max: 3, Window: defaultWindow, KeyBy: KeyIP},
		{Name: PolicyPasswordReset, Max: 3, Window: defaultWindow, KeyBy: KeyIP},
		{Name: PolicyReportsExport, Max: 10, Window: defaultWindow, KeyBy: KeyUserOrIP},
		{Name: PolicyUploads, Max: 20, Window: defaultWindow, KeyBy: KeyUserOrIP},
		{Name: PolicyPublic, Max: 120, Window: defaultWindow, KeyBy: KeyIP},
		{Name: PolicyNotifications, Max: 5, Window: defaultWindow, KeyBy: KeyUserOrIP},
	}
}

// Table holds the policies by name.
type Table struct {
	policies map[string]Policy
}

func NewTable(policies ...Policy) (*Table, error) {
	t := &Table{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		if err := p.check(); err != nil {
			return nil, err
		}
		t.policies[p.Name] = p
	}
	return t, nil
}

func DefaultTable() *Table {
	t, err := NewTable(DefaultPolicies()...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Get(name string) (Policy, bool) {
	p, ok := t.policies[name]
	return p, ok
}

// Policies returns every policy sorted by name.
func (t *Table) Policies() []Policy {
	all := make([]Policy, 0, len(t.policies))
	for _, p := range t.policies {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

type policyOverride struct {
	Name   string `yaml:"name"`
	Max    *int   `yaml:"max"`
	Window string `yaml:"window"`
	Key    string `yaml:"key"`
}

type policiesFile struct {
	Policies []policyOverride `yaml:"policies"`
}

// ParsePolicies applies the YAML overrides read from r to the default policies.
// Unknown names add new policies keyed by user or IP over one minute unless set.
//
//	policies:
//	  - name: login
//	    max: 10
//	    window: 5m
func ParsePolicies(r io.Reader) (*Table, error) {
	var f policiesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding rate limit policies")
	}

	byName := make(map[string]Policy)
	var order []string
	for _, p := range DefaultPolicies() {
		byName[p.Name] = p
		order = append(order, p.Name)
	}
	for _, o := range f.Policies {
		p, ok := byName[o.Name]
		if !ok {
			p = Policy{Name: o.Name, KeyBy: KeyUserOrIP, Window: defaultWindow}
			order = append(order, o.Name)
		}
		if o.Max != nil {
			p.Max = *o.Max
		}
		if o.Window != "" {
			d, err := time.ParseDuration(o.Window)
			if err != nil {
				return nil, errors.Wrapf(err, "policy %q: window", o.Name)
			}
			p.Window = d
		}
		if o.Key != "" {
			p.KeyBy = o.Key
		}
		byName[o.Name] = p
	}

	policies := make([]Policy, 0, len(order))
	for _, name := range order {
		policies = append(policies, byName[name])
	}
	return NewTable(policies...)
}

// LoadPolicies reads overrides from path; an empty path yields the defaults.
func LoadPolicies(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening rate limit policies")
	}
	defer f.Close()
	return ParsePolicies(f)
}
