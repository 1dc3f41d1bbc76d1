// Package guard gates dashboard routes on session state.
//
// Three guards cover the access patterns: Protected wraps pages that need a
// signed-in user, GuestOnly wraps the sign-in surfaces, and RoleRestricted
// layers a role allow-list with an optional CEL condition on top of
// Protected. While the session is still hydrating, every guard renders a
// waiting page instead of deciding; a guess made during loading would
// redirect users who are about to turn out signed in.
package guard

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/masjid-network/masjidctl/internal/session"
)

const (
	loginPath   = "/login"
	homePath    = "/dashboard"
	deniedPath  = "/unauthorized"
	returnParam = "return_url"
)

// Guard wraps handlers with session checks.
type Guard struct {
	sessions *session.Service
	logger   *slog.Logger
}

// New builds a Guard over the given session service.
func New(sessions *session.Service, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, logger: logger}
}

// Protected allows only signed-in users. Anyone else is sent to the sign-in
// page with the original URL preserved for the post-login redirect.
func (g *Guard) Protected(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := g.sessions.Snapshot()
		if st.Loading {
			renderWaiting(w)
			return
		}
		if !st.Authenticated {
			target := loginPath + "?" + returnParam + "=" + url.QueryEscape(r.URL.RequestURI())
			g.logger.Debug("unauthenticated request redirected", "path", r.URL.Path)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GuestOnly allows only signed-out users; a signed-in user landing on a
// sign-in surface is bounced to the dashboard.
func (g *Guard) GuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := g.sessions.Snapshot()
		if st.Loading {
			renderWaiting(w)
			return
		}
		if st.Authenticated {
			http.Redirect(w, r, homePath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoleRule restricts a route to certain roles, optionally refined by a CEL
// condition over the user record.
type RoleRule struct {
	// Roles is the allow-list. Empty means any signed-in user passes the
	// role check and only the condition applies.
	Roles []string
	// Condition is an optional CEL expression, compiled at construction.
	// It sees a `user` map with id, email, username, role and phone.
	Condition string

	prg cel.Program
}

// CompileRule validates and compiles a rule's condition up front so a typo
// in configuration fails at startup, not at request time.
func CompileRule(rule RoleRule) (RoleRule, error) {
	if rule.Condition == "" {
		return rule, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return rule, fmt.Errorf("create condition environment: %w", err)
	}
	ast, issues := env.Compile(rule.Condition)
	if issues != nil && issues.Err() != nil {
		return rule, fmt.Errorf("compile condition %q: %w", rule.Condition, issues.Err())
	}
	prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return rule, fmt.Errorf("build condition program: %w", err)
	}
	rule.prg = prg
	return rule, nil
}

// RoleRestricted allows only signed-in users whose role passes the rule.
// The authentication checks of Protected apply first; a signed-in user with
// the wrong role lands on the unauthorized page, never the sign-in page.
func (g *Guard) RoleRestricted(rule RoleRule, next http.Handler) http.Handler {
	return g.Protected(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := g.sessions.Snapshot()
		if !g.allows(rule, st) {
			g.logger.Info("role check failed", "path", r.URL.Path)
			http.Redirect(w, r, deniedPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (g *Guard) allows(rule RoleRule, st session.State) bool {
	// Authenticated without a loaded user record happens after an
	// unreachable hydration. The role is unknown, so a restricted route
	// cannot admit them.
	if st.User == nil {
		return false
	}
	if len(rule.Roles) > 0 && !slices.Contains(rule.Roles, st.User.EffectiveRole()) {
		return false
	}
	if rule.prg == nil {
		return true
	}
	out, _, err := rule.prg.Eval(map[string]any{
		"user": map[string]any{
			"id":       st.User.ID,
			"email":    st.User.Email,
			"username": st.User.Username,
			"role":     st.User.EffectiveRole(),
			"phone":    st.User.Phone,
		},
	})
	if err != nil {
		g.logger.Warn("role condition evaluation failed", "error", err)
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// renderWaiting answers a request that arrived before hydration settled.
// 200 with a refresh hint, never a redirect: the state is unknown, not bad.
func renderWaiting(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head><body><p>Checking your session&hellip;</p></body></html>`)
}
