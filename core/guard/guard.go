package guard

import (
	"net/url"
	"strings"
)

type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToHome
)

func (o Outcome) String() string {
	switch o {
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToHome:
		return "redirect-to-home"
	default:
		return "allow"
	}
}

// Decision is the outcome of one evaluation. ReturnTo is only set for RedirectToLogin.
type Decision struct {
	Outcome  Outcome
	ReturnTo string
	Location string // redirect target, empty on Allow
}

type Config struct {
	LoginPath         string
	HomePath          string
	ReturnParam       string   // query param carrying the original path
	ProtectedPrefixes []string // root segments, e.g. "/dashboard"
	AuthPaths         []string // exact paths, e.g. "/login"
}

// Guard decides whether a portal page may be served. It keeps no state between requests.
type Guard struct {
	conf Config
}

func New(conf Config) *Guard {
	if conf.ReturnParam == "" {
		conf.ReturnParam = "redirect"
	}
	conf.ProtectedPrefixes = cleanPaths(conf.ProtectedPrefixes)
	conf.AuthPaths = cleanPaths(conf.AuthPaths)
	return &Guard{conf: conf}
}

// Evaluate decides from the requested path and whether a credential token is present.
func (g *Guard) Evaluate(path string, hasToken bool) Decision {
	path = cleanPath(path)

	if !hasToken && g.isProtected(path) {
		q := url.Values{}
		q.Set(g.conf.ReturnParam, path)
		return Decision{
			Outcome:  RedirectToLogin,
			ReturnTo: path,
			Location: g.conf.LoginPath + "?" + q.Encode(),
		}
	}
	if hasToken && g.isAuthPath(path) {
		return Decision{Outcome: RedirectToHome, Location: g.conf.HomePath}
	}
	return Decision{Outcome: Allow}
}

func (g *Guard) isProtected(path string) bool {
	for _, prefix := range g.conf.ProtectedPrefixes {
		if hasPrefixSegment(path, prefix) {
			return true
		}
	}
	return false
}

func (g *Guard) isAuthPath(path string) bool {
	for _, p := range g.conf.AuthPaths {
		if path == p {
			return true
		}
	}
	return false
}

// hasPrefixSegment matches whole segments: "/dashboard" covers "/dashboard/x" but not "/dashboards".
func hasPrefixSegment(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, cleanPath(p))
		}
	}
	return out
}
