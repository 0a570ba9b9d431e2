package validation

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a Predicate. The set is closed: the evaluator switches on it.
type Kind int

const (
	KindRequired Kind = iota + 1
	KindSometimes
	KindNullable
	KindString
	KindInteger
	KindNumeric
	KindBoolean
	KindArray
	KindDate
	KindDateFormat
	KindEmail
	KindURL
	KindMin
	KindMax
	KindBefore
	KindAfter
	KindBeforeOrEqual
	KindAfterOrEqual
	KindIn
	KindConfirmed
	KindRegex
	KindTag
	KindPassword
	KindFile
	KindMimes
	KindUnique
	KindExists
	KindPresent
)

var kindNames = map[Kind]string{
	KindRequired:      "required",
	KindSometimes:     "sometimes",
	KindNullable:      "nullable",
	KindString:        "string",
	KindInteger:       "integer",
	KindNumeric:       "numeric",
	KindBoolean:       "boolean",
	KindArray:         "array",
	KindDate:          "date",
	KindDateFormat:    "date_format",
	KindEmail:         "email",
	KindURL:           "url",
	KindMin:           "min",
	KindMax:           "max",
	KindBefore:        "before",
	KindAfter:         "after",
	KindBeforeOrEqual: "before_or_equal",
	KindAfterOrEqual:  "after_or_equal",
	KindIn:            "in",
	KindConfirmed:     "confirmed",
	KindRegex:         "regex",
	KindTag:           "tag",
	KindPassword:      "password",
	KindFile:          "file",
	KindMimes:         "mimes",
	KindUnique:        "unique",
	KindExists:        "exists",
	KindPresent:       "present",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IgnorePrincipal makes a uniqueness check ignore the acting principal's own row.
const IgnorePrincipal = "@principal"

// Predicate is one constraint of a field.
type Predicate struct {
	Kind       Kind
	Bound      float64        // min / max
	Ref        string         // before / after: "today", "now", "tomorrow", "yesterday", a field or a date
	Layout     string         // date_format
	Values     []string       // in / mimes
	Pattern    *regexp.Regexp // regex
	Tag        string         // validator tag
	Collection string         // unique / exists
	Column     string         // unique / exists
	Ignore     string         // unique: route param holding the id to ignore, or IgnorePrincipal
	Attrs      []string       // password: fields the password must not resemble
	Message    string         // replaces the default message
}

// WithMessage returns a copy of p reporting msg instead of the default message.
func (p Predicate) WithMessage(msg string) Predicate {
	p.Message = msg
	return p
}

func (p Predicate) isQualifier() bool {
	switch p.Kind {
	case KindRequired, KindSometimes, KindNullable, KindPresent:
		return true
	}
	return false
}

func (p Predicate) String() string {
	switch p.Kind {
	case KindMin, KindMax:
		return p.Kind.String() + ":" + formatNumber(p.Bound)
	case KindBefore, KindAfter, KindBeforeOrEqual, KindAfterOrEqual:
		return p.Kind.String() + ":" + p.Ref
	case KindDateFormat:
		return p.Kind.String() + ":" + p.Layout
	case KindIn, KindMimes:
		return p.Kind.String() + ":" + strings.Join(p.Values, ",")
	case KindTag:
		return p.Tag
	case KindUnique, KindExists:
		s := p.Kind.String() + ":" + p.Collection + "," + p.Column
		if p.Ignore != "" {
			s += "," + p.Ignore
		}
		return s
	default:
		return p.Kind.String()
	}
}

func Required() Predicate  { return Predicate{Kind: KindRequired} }
func Sometimes() Predicate { return Predicate{Kind: KindSometimes} }
func Nullable() Predicate  { return Predicate{Kind: KindNullable} }
func Present() Predicate   { return Predicate{Kind: KindPresent} } // key sent, empty values accepted
func String() Predicate    { return Predicate{Kind: KindString} }
func Integer() Predicate   { return Predicate{Kind: KindInteger} }
func Numeric() Predicate   { return Predicate{Kind: KindNumeric} }
func Boolean() Predicate   { return Predicate{Kind: KindBoolean} }
func Array() Predicate     { return Predicate{Kind: KindArray} }
func Date() Predicate      { return Predicate{Kind: KindDate} }
func Email() Predicate     { return Predicate{Kind: KindEmail} }
func URL() Predicate       { return Predicate{Kind: KindURL} }
func Confirmed() Predicate { return Predicate{Kind: KindConfirmed} }
func File() Predicate      { return Predicate{Kind: KindFile} }

// DateFormat expects a Go time layout, e.g. "15:04".
func DateFormat(layout string) Predicate { return Predicate{Kind: KindDateFormat, Layout: layout} }

// Min and Max bound string length, numeric value, item count or file size (KB),
// depending on the field's type predicates.
func Min(n float64) Predicate { return Predicate{Kind: KindMin, Bound: n} }
func Max(n float64) Predicate { return Predicate{Kind: KindMax, Bound: n} }

func Before(ref string) Predicate        { return Predicate{Kind: KindBefore, Ref: ref} }
func After(ref string) Predicate         { return Predicate{Kind: KindAfter, Ref: ref} }
func BeforeOrEqual(ref string) Predicate { return Predicate{Kind: KindBeforeOrEqual, Ref: ref} }
func AfterOrEqual(ref string) Predicate  { return Predicate{Kind: KindAfterOrEqual, Ref: ref} }

func In(values ...string) Predicate  { return Predicate{Kind: KindIn, Values: values} }
func Mimes(exts ...string) Predicate { return Predicate{Kind: KindMimes, Values: exts} }
func Regex(pattern string) Predicate {
	return Predicate{Kind: KindRegex, Pattern: regexp.MustCompile(pattern)}
}
func Tag(tag string) Predicate { return Predicate{Kind: KindTag, Tag: tag} }

// Password applies the password policy; attrs name the fields it must not resemble.
func Password(attrs ...string) Predicate { return Predicate{Kind: KindPassword, Attrs: attrs} }

func Unique(collection, column string) Predicate {
	return Predicate{Kind: KindUnique, Collection: collection, Column: column}
}

// UniqueIgnoring skips the row whose id is held by route param `ignore` (or IgnorePrincipal).
func UniqueIgnoring(collection, column, ignore string) Predicate {
	return Predicate{Kind: KindUnique, Collection: collection, Column: column, Ignore: ignore}
}

func Exists(collection, column string) Predicate {
	return Predicate{Kind: KindExists, Collection: collection, Column: column}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
