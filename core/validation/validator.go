package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
)

// NowFunc is the clock behind relative dates ("today", "now"...). Mockable.
var NowFunc = time.Now

// dateLayouts are tried in order when a value must be read as a date. All of them carry a date.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
}

// untrimmed keys keep their surrounding whitespace.
var untrimmed = map[string]bool{
	"password":              true,
	"password_confirmation": true,
	"current_password":      true,
}

// Lookup answers existence questions for unique / exists predicates.
type Lookup interface {
	Exists(ctx context.Context, collection, column string, value interface{}) (bool, error)
	ExistsExcluding(ctx context.Context, collection, column string, value interface{}, excludeID string) (bool, error)
}

// Authorizer decides whether a principal may run a rule set's operation.
type Authorizer interface {
	Authorize(ctx context.Context, p Principal, rs RuleSet) (bool, error)
}

// RoleAuthorizer allows public operations to anyone and others to principals holding one of their roles.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, p Principal, rs RuleSet) (bool, error) {
	if rs.IsPublic() {
		return true, nil
	}
	if p.IsAnonymous() {
		return false, nil
	}
	for _, want := range rs.Roles {
		for _, role := range p.Roles {
			if role == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// PasswordPolicyFunc returns why password is rejected, or "" when it is accepted.
// attrs are the values the password must not resemble.
type PasswordPolicyFunc func(password string, attrs ...string) string

type Options struct {
	Lookup         Lookup
	Authorizer     Authorizer // defaults to RoleAuthorizer
	Validate       *validator.Validate
	Translator     ut.Translator
	PasswordPolicy PasswordPolicyFunc
}

// Validator evaluates requests against the registered rule sets.
type Validator struct {
	registry       *Registry
	lookup         Lookup
	authz          Authorizer
	validate       *validator.Validate
	trans          ut.Translator
	passwordPolicy PasswordPolicyFunc
}

func New(registry *Registry, opts Options) *Validator {
	v := &Validator{
		registry:       registry,
		lookup:         opts.Lookup,
		authz:          opts.Authorizer,
		validate:       opts.Validate,
		trans:          opts.Translator,
		passwordPolicy: opts.PasswordPolicy,
	}
	if v.authz == nil {
		v.authz = RoleAuthorizer{}
	}
	if v.validate == nil || v.trans == nil {
		if v.validate == nil {
			v.validate = validator.New()
		}
		if v.trans == nil {
			v.trans = core.NewTranslator()
		}
		core.InitValidators(v.validate, v.trans)
	}
	_ = RegisterMessages(v.trans)
	return v
}

func (v *Validator) Registry() *Registry { return v.registry }

// Validate checks req against the rule set of op.
// It returns the normalized input restricted to the declared fields, core.ErrPermissionDenied,
// a *core.ValidationError holding every field failure, or a *core.LookupError.
func (v *Validator) Validate(ctx context.Context, op string, req Request) (map[string]interface{}, error) {
	rs, ok := v.registry.Get(op)
	if !ok {
		return nil, errors.Errorf("validation: unknown operation %q", op)
	}

	allowed, err := v.authz.Authorize(ctx, req.Principal, rs)
	if err != nil {
		return nil, errors.Wrapf(err, "authorizing %s", op)
	}
	if !allowed {
		return nil, core.ErrPermissionDenied
	}

	fields := rs.Fields
	if rs.Resolve != nil {
		extra, err := rs.Resolve(ctx, req)
		if err != nil {
			return nil, core.NewLookupError("resolve rules of "+op, err)
		}
		fields = append(append([]FieldConstraint(nil), rs.Fields...), extra...)
	}

	ev := &evaluation{
		Validator: v,
		ctx:       ctx,
		req:       req,
		data:      normalizeMap(req.Data),
		labels:    make(map[string]string, len(fields)),
		layouts:   make(map[string][]string, len(fields)),
		verr:      &core.ValidationError{},
	}
	for _, fc := range fields {
		ev.labels[fc.Field] = fc.label()
		ev.layouts[fc.Field] = fc.dateLayouts()
	}
	for _, fc := range fields {
		if err := ev.field(fc); err != nil {
			return nil, err
		}
	}

	if ev.verr.HasErrors() {
		return nil, ev.verr
	}
	return ev.output(), nil
}

type target struct {
	key     string // reported key, wildcards replaced by indexes
	value   interface{}
	present bool
}

type accepted struct {
	key   string
	value interface{}
}

type evaluation struct {
	*Validator
	ctx      context.Context
	req      Request
	data     map[string]interface{}
	labels   map[string]string
	layouts  map[string][]string
	verr     *core.ValidationError
	accepted []accepted
}

func (ev *evaluation) field(fc FieldConstraint) error {
	for _, t := range expand(ev.data, fc.Field) {
		if err := ev.target(fc, t); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluation) target(fc FieldConstraint, t target) error {
	if !t.present && fc.has(KindSometimes) {
		return nil
	}
	if p, ok := fc.rule(KindPresent); ok && !t.present {
		ev.fail(t.key, fc, p, "")
		return nil
	}

	if isEmpty(t.value) {
		switch {
		case fc.has(KindRequired):
			p, _ := fc.rule(KindRequired)
			ev.fail(t.key, fc, p, "")
		case !t.present:
		case fc.has(KindPresent):
			ev.accept(t.key, t.value)
		case fc.has(KindNullable):
			ev.accept(t.key, nil)
		default:
			// an explicit null only fails the field's type
			for _, p := range fc.Rules {
				if isType(p.Kind) {
					ev.fail(t.key, fc, p, ev.param(p))
					return nil
				}
			}
			ev.accept(t.key, nil)
		}
		return nil
	}

	typed := t.value
	typeFailed := false
	failed := false
	for _, p := range fc.Rules {
		if p.isQualifier() || (typeFailed && dependsOnType(p.Kind)) || (failed && isLookup(p.Kind)) {
			continue
		}
		ok, err := ev.check(fc, t, p, &typed)
		if err != nil {
			return err
		}
		if !ok {
			failed = true
			if isType(p.Kind) {
				typeFailed = true
			}
			ev.fail(t.key, fc, p, ev.param(p))
		}
	}
	if !failed {
		ev.accept(t.key, typed)
	}
	return nil
}

func (ev *evaluation) accept(key string, value interface{}) {
	ev.accepted = append(ev.accepted, accepted{key: key, value: value})
}

func (ev *evaluation) fail(key string, fc FieldConstraint, p Predicate, param string) {
	if p.Message != "" {
		ev.verr.Add(key, p.Message)
		return
	}
	ev.verr.Add(key, ev.message(messageKey(fc, p), fc.label(), param))
}

func (v *Validator) message(key, label, param string) string {
	if s, err := v.trans.T(key, label, param); err == nil {
		return s
	}
	s, _ := v.trans.T("invalid", label, param)
	return s
}

func messageKey(fc FieldConstraint, p Predicate) string {
	switch p.Kind {
	case KindMin, KindMax:
		return p.Kind.String() + "." + string(fc.sizeUnit())
	case KindTag:
		return p.Tag
	default:
		return p.Kind.String()
	}
}

// param renders the {1} placeholder of p's message.
func (ev *evaluation) param(p Predicate) string {
	switch p.Kind {
	case KindMin, KindMax:
		return formatNumber(p.Bound)
	case KindDateFormat:
		return p.Layout
	case KindMimes, KindIn:
		return strings.Join(p.Values, "، ")
	case KindBefore, KindAfter, KindBeforeOrEqual, KindAfterOrEqual:
		if l, ok := refLabels[p.Ref]; ok {
			return l
		}
		if l, ok := ev.labels[p.Ref]; ok {
			return l
		}
		return p.Ref
	default:
		return ""
	}
}

// check runs one predicate. typed receives the converted value of type predicates.
func (ev *evaluation) check(fc FieldConstraint, t target, p Predicate, typed *interface{}) (bool, error) {
	val := t.value
	switch p.Kind {
	case KindString:
		_, ok := val.(string)
		return ok, nil

	case KindInteger:
		n, ok := toInt(val)
		if ok {
			*typed = n
		}
		return ok, nil

	case KindNumeric:
		f, ok := ev.toFloat(val)
		if ok {
			*typed = f
		}
		return ok, nil

	case KindBoolean:
		b, ok := toBool(val)
		if ok {
			*typed = b
		}
		return ok, nil

	case KindArray:
		switch val.(type) {
		case []interface{}, map[string]interface{}:
			return true, nil
		}
		return false, nil

	case KindDate:
		_, ok := toDate(val, dateLayouts)
		return ok, nil

	case KindDateFormat:
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		_, err := time.Parse(p.Layout, s)
		return err == nil, nil

	case KindEmail, KindURL:
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		return ev.validate.Var(s, p.Kind.String()) == nil, nil

	case KindMin, KindMax:
		size, ok := ev.size(fc, val)
		if !ok {
			return true, nil
		}
		if p.Kind == KindMin {
			return size >= p.Bound, nil
		}
		return size <= p.Bound, nil

	case KindBefore, KindAfter, KindBeforeOrEqual, KindAfterOrEqual:
		return ev.compareDates(fc, val, p), nil

	case KindIn:
		if items, ok := val.([]interface{}); ok {
			for _, item := range items {
				if !contains(p.Values, stringOf(item)) {
					return false, nil
				}
			}
			return true, nil
		}
		return contains(p.Values, stringOf(val)), nil

	case KindConfirmed:
		confirmation, ok := ev.data[t.key+"_confirmation"]
		return ok && stringOf(confirmation) == stringOf(val), nil

	case KindRegex:
		s, ok := val.(string)
		return ok && p.Pattern.MatchString(s), nil

	case KindTag:
		return ev.validate.Var(val, p.Tag) == nil, nil

	case KindPassword:
		if ev.passwordPolicy == nil {
			return true, nil
		}
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		attrs := make([]string, 0, len(p.Attrs))
		for _, a := range p.Attrs {
			if av, ok := ev.data[a].(string); ok {
				attrs = append(attrs, av)
			}
		}
		if msg := ev.passwordPolicy(s, attrs...); msg != "" {
			ev.verr.Add(t.key, msg)
		}
		return true, nil

	case KindFile:
		fh, ok := val.(*multipart.FileHeader)
		return ok && fh != nil, nil

	case KindMimes:
		fh, ok := val.(*multipart.FileHeader)
		if !ok || fh == nil {
			return false, nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
		return contains(p.Values, ext), nil

	case KindUnique:
		found, err := ev.exists(p, *typed, ev.excludeID(p))
		if err != nil {
			return false, err
		}
		return !found, nil

	case KindExists:
		found, err := ev.exists(p, *typed, "")
		if err != nil {
			return false, err
		}
		return found, nil
	}
	return true, nil
}

func (ev *evaluation) excludeID(p Predicate) string {
	switch p.Ignore {
	case "":
		return ""
	case IgnorePrincipal:
		return ev.req.Principal.ID
	default:
		return ev.req.Params[p.Ignore]
	}
}

func (ev *evaluation) exists(p Predicate, val interface{}, excludeID string) (bool, error) {
	op := p.String()
	if ev.lookup == nil {
		return false, core.NewLookupError(op, errors.New("no lookup configured"))
	}
	var (
		found bool
		err   error
	)
	if excludeID != "" {
		found, err = ev.lookup.ExistsExcluding(ev.ctx, p.Collection, p.Column, val, excludeID)
	} else {
		found, err = ev.lookup.Exists(ev.ctx, p.Collection, p.Column, val)
	}
	if err != nil {
		return false, core.NewLookupError(op, err)
	}
	return found, nil
}

// size measures val for min / max, in the unit implied by the field's type.
func (ev *evaluation) size(fc FieldConstraint, val interface{}) (float64, bool) {
	switch fc.sizeUnit() {
	case sizeNumeric:
		return ev.toFloat(val)
	case sizeArray:
		switch items := val.(type) {
		case []interface{}:
			return float64(len(items)), true
		case map[string]interface{}:
			return float64(len(items)), true
		}
		return 0, false
	case sizeFile:
		fh, ok := val.(*multipart.FileHeader)
		if !ok || fh == nil {
			return 0, false
		}
		return float64(fh.Size) / 1024, true
	default:
		s, ok := val.(string)
		if !ok {
			return 0, false
		}
		return float64(utf8.RuneCountInString(s)), true
	}
}

func (ev *evaluation) compareDates(fc FieldConstraint, val interface{}, p Predicate) bool {
	d, ok := toDate(val, fc.dateLayouts())
	if !ok {
		return true
	}
	ref, ok := ev.refDate(p.Ref)
	if !ok {
		return true
	}
	switch p.Kind {
	case KindBefore:
		return d.Before(ref)
	case KindAfter:
		return d.After(ref)
	case KindBeforeOrEqual:
		return !d.After(ref)
	default:
		return !d.Before(ref)
	}
}

// refDate resolves a before/after reference. An absent or invalid referenced field skips the comparison.
func (ev *evaluation) refDate(ref string) (time.Time, bool) {
	now := NowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch ref {
	case "now":
		return now, true
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}
	if layouts, declared := ev.layouts[ref]; declared {
		return toDate(ev.data[ref], layouts)
	}
	if other, ok := ev.data[ref]; ok {
		return toDate(other, dateLayouts)
	}
	return toDate(ref, dateLayouts)
}

// output builds the validated input: declared top-level fields, then wildcard items.
func (ev *evaluation) output() map[string]interface{} {
	out := make(map[string]interface{})
	var nested []accepted
	for _, a := range ev.accepted {
		if strings.Contains(a.key, ".") {
			nested = append(nested, a)
			continue
		}
		out[a.key] = a.value
	}
	for _, a := range nested {
		setPath(out, strings.Split(a.key, "."), a.value)
	}
	return out
}

func setPath(node interface{}, path []string, value interface{}) {
	if len(path) == 0 {
		return
	}
	last := len(path) == 1
	switch n := node.(type) {
	case map[string]interface{}:
		if last {
			n[path[0]] = value
			return
		}
		child, ok := n[path[0]]
		if !ok {
			return
		}
		setPath(child, path[1:], value)
	case []interface{}:
		i, err := strconv.Atoi(path[0])
		if err != nil || i < 0 || i >= len(n) {
			return
		}
		if last {
			n[i] = value
			return
		}
		setPath(n[i], path[1:], value)
	}
}

// expand resolves a field path against data, one target per matched array element.
func expand(data map[string]interface{}, field string) []target {
	var out []target
	var walk func(node interface{}, present bool, segs, prefix []string)
	walk = func(node interface{}, present bool, segs, prefix []string) {
		if len(segs) == 0 {
			out = append(out, target{key: strings.Join(prefix, "."), value: node, present: present})
			return
		}
		seg := segs[0]
		if seg == "*" {
			items, ok := node.([]interface{})
			if !ok {
				return
			}
			for i, item := range items {
				walk(item, true, segs[1:], append(prefix[:len(prefix):len(prefix)], strconv.Itoa(i)))
			}
			return
		}
		var child interface{}
		childPresent := false
		if m, ok := node.(map[string]interface{}); ok {
			child, childPresent = m[seg]
		}
		walk(child, childPresent, segs[1:], append(prefix[:len(prefix):len(prefix)], seg))
	}
	walk(data, true, strings.Split(field, "."), nil)
	return out
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok && untrimmed[k] {
			if s == "" {
				out[k] = nil
			} else {
				out[k] = s
			}
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

// normalize cleans strings recursively; blank strings become nil.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if s := core.CleanString(val); s != "" {
			return s
		}
		return nil
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = normalize(item)
		}
		return items
	default:
		return v
	}
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	case *multipart.FileHeader:
		return val == nil
	}
	return false
}

func isType(k Kind) bool {
	switch k {
	case KindString, KindInteger, KindNumeric, KindBoolean, KindArray, KindDate, KindDateFormat, KindFile:
		return true
	}
	return false
}

// dependsOnType lists the predicates skipped once the value failed its type.
func dependsOnType(k Kind) bool {
	switch k {
	case KindMin, KindMax, KindBefore, KindAfter, KindBeforeOrEqual, KindAfterOrEqual,
		KindMimes, KindUnique, KindExists:
		return true
	}
	return false
}

// isLookup lists the predicates querying the store. They only run on otherwise valid values.
func isLookup(k Kind) bool {
	return k == KindUnique || k == KindExists
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func (v *Validator) toFloat(val interface{}) (float64, bool) {
	switch n := val.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		if v.validate.Var(n, "numeric") != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case int:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case int64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case json.Number:
		if b == "0" || b == "1" {
			return b == "1", true
		}
	case string:
		if b == "0" || b == "1" {
			return b == "1", true
		}
	}
	return false, false
}

func toDate(v interface{}, layouts []string) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, d, time.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func stringOf(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return formatNumber(s)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
