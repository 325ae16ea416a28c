package navigation

import (
	"context"
	"fmt"
	"strings"
)

// Session is the client state the guard reads.
type Session interface {
	IsAuthenticated() bool
	HasProfile() bool
	FetchProfile(ctx context.Context) error
	HasPermission(perm string) bool
}

type Outcome int

const (
	Allow Outcome = iota
	Redirect
	// Deny means the computed redirect points back at the target itself.
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Decision is the result of one navigation attempt. Path is set for Redirect.
type Decision struct {
	Outcome Outcome
	Path    string
	// FetchErr holds the profile fetch failure that forced a logout, if any.
	FetchErr error
}

func (d Decision) String() string {
	if d.Outcome == Redirect {
		return "redirect " + d.Path
	}
	return d.Outcome.String()
}

// Guard evaluates navigation attempts against a fixed route table.
type Guard struct {
	routes   map[string]Route
	landing  []PermissionRoute
	rootPerm string
}

// NewGuard builds a guard. The landing order is copied and never changes.
func NewGuard(routes []Route, landing []PermissionRoute) *Guard {
	g := &Guard{
		routes:  make(map[string]Route, len(routes)),
		landing: append([]PermissionRoute(nil), landing...),
	}
	for _, r := range routes {
		g.routes[normalize(r.Path)] = r
	}
	if root, ok := g.routes[RootPath]; ok {
		g.rootPerm = root.Permission
	}
	return g
}

// Default returns a guard over DefaultRoutes and DefaultPermissionRoutes.
func Default() *Guard {
	return NewGuard(DefaultRoutes(), DefaultPermissionRoutes())
}

// Resolve decides whether the session may open path.
func (g *Guard) Resolve(ctx context.Context, s Session, path string) Decision {
	path = normalize(path)

	var fetchErr error
	if s.IsAuthenticated() && !s.HasProfile() {
		// A failed fetch has already logged the session out.
		fetchErr = s.FetchProfile(ctx)
	}
	authed := s.IsAuthenticated()
	route, known := g.routes[path]

	decide := func(target string) Decision {
		d := Decision{Outcome: Allow, FetchErr: fetchErr}
		if target != "" {
			d.Outcome, d.Path = Redirect, target
			if target == path {
				d.Outcome, d.Path = Deny, ""
			}
		}
		return d
	}

	switch {
	case !known:
		return decide("")
	case route.RequiresAuth && !authed:
		return decide(LoginPath)
	case route.GuestOnly && authed:
		return decide(g.Landing(s))
	case path == RootPath && authed:
		if g.rootPerm == "" || s.HasPermission(g.rootPerm) {
			return decide("")
		}
		return decide(g.Landing(s))
	case route.Permission != "" && !s.HasPermission(route.Permission):
		return decide(g.Landing(s))
	}
	return decide("")
}

// Landing returns the first permission route the session can open, or the root.
func (g *Guard) Landing(s Session) string {
	for _, pr := range g.landing {
		if s.HasPermission(pr.Permission) {
			return pr.Path
		}
	}
	return RootPath
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return RootPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path = strings.TrimRight(path, "/"); path == "" {
		return RootPath
	}
	return path
}
