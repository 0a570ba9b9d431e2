package validation

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FieldConstraint holds one field's ordered predicates.
// Field may use a `.*` segment to address every element of an array, e.g. "records.*.status".
type FieldConstraint struct {
	Field string
	Label string // Arabic attribute name used in messages
	Rules []Predicate
}

func Field(name, label string, rules ...Predicate) FieldConstraint {
	return FieldConstraint{Field: name, Label: label, Rules: rules}
}

func (fc FieldConstraint) has(k Kind) bool {
	for _, p := range fc.Rules {
		if p.Kind == k {
			return true
		}
	}
	return false
}

// rule returns the declared predicate of kind k.
func (fc FieldConstraint) rule(k Kind) (Predicate, bool) {
	for _, p := range fc.Rules {
		if p.Kind == k {
			return p, true
		}
	}
	return Predicate{}, false
}

func (fc FieldConstraint) label() string {
	if fc.Label != "" {
		return fc.Label
	}
	return fc.Field
}

// IsWildcard reports whether the field addresses array elements.
func (fc FieldConstraint) IsWildcard() bool {
	return strings.Contains(fc.Field, ".*")
}

type sizeUnit string

const (
	sizeString  sizeUnit = "string"
	sizeNumeric sizeUnit = "numeric"
	sizeArray   sizeUnit = "array"
	sizeFile    sizeUnit = "file"
)

// dateLayouts are the layouts used to read the field as a date in before/after comparisons.
func (fc FieldConstraint) dateLayouts() []string {
	if p, ok := fc.rule(KindDateFormat); ok {
		return []string{p.Layout}
	}
	return dateLayouts
}

// sizeUnit tells how min/max are measured for this field.
func (fc FieldConstraint) sizeUnit() sizeUnit {
	switch {
	case fc.has(KindInteger) || fc.has(KindNumeric):
		return sizeNumeric
	case fc.has(KindArray):
		return sizeArray
	case fc.has(KindFile):
		return sizeFile
	default:
		return sizeString
	}
}

// Principal is the acting user. An empty ID means an anonymous request.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) IsAnonymous() bool { return p.ID == "" }

// Request is the input of one validation.
type Request struct {
	Principal Principal
	Params    map[string]string // route params
	Data      map[string]interface{}
}

// ResolveFunc produces constraints that depend on stored state, once per request.
type ResolveFunc func(ctx context.Context, req Request) ([]FieldConstraint, error)

// RuleSet bundles the constraints and allowed roles of one operation.
type RuleSet struct {
	Operation string
	Roles     []string // empty: anyone, including anonymous requests
	Fields    []FieldConstraint
	Resolve   ResolveFunc
}

// IsPublic reports whether anonymous requests may run the operation.
func (rs RuleSet) IsPublic() bool { return len(rs.Roles) == 0 }

// Registry holds the rule sets by operation name.
type Registry struct {
	mu    sync.RWMutex
	sets  map[string]RuleSet
	order []string
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]RuleSet)}
}

func (r *Registry) Register(sets ...RuleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rs := range sets {
		if rs.Operation == "" {
			return errors.New("validation: rule set without operation")
		}
		if _, ok := r.sets[rs.Operation]; ok {
			return errors.Errorf("validation: duplicate rule set %q", rs.Operation)
		}
		r.sets[rs.Operation] = rs
		r.order = append(r.order, rs.Operation)
	}
	return nil
}

func (r *Registry) MustRegister(sets ...RuleSet) {
	if err := r.Register(sets...); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(op string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.sets[op]
	return rs, ok
}

// All returns the rule sets in registration order.
func (r *Registry) All() []RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]RuleSet, 0, len(r.order))
	for _, op := range r.order {
		all = append(all, r.sets[op])
	}
	return all
}
