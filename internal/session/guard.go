package session

// Decision is a route guard's verdict for one snapshot.
type Decision int

const (
	// DecisionWait means the session is still loading: render neither the
	// guarded content nor a redirect.
	DecisionWait Decision = iota
	DecisionAllow
	DecisionRedirect
)

// Guard decides whether a route may be entered given the session state.
// Guards hold no state of their own.
type Guard struct {
	requireSignedIn bool
	redirectTo      string
}

// RequireAuth guards routes only signed-in users may enter; signed-out
// visitors are sent to redirectTo (the sign-in view).
func RequireAuth(redirectTo string) Guard {
	return Guard{requireSignedIn: true, redirectTo: redirectTo}
}

// RequireAnon guards routes only signed-out visitors may enter; signed-in
// users are sent to redirectTo (the dashboard).
func RequireAnon(redirectTo string) Guard {
	return Guard{requireSignedIn: false, redirectTo: redirectTo}
}

// Decide returns the verdict for the given snapshot, and the redirect
// target when the verdict is DecisionRedirect.
func (g Guard) Decide(snap Snapshot) (Decision, string) {
	if snap.Loading {
		return DecisionWait, ""
	}
	if snap.SignedIn == g.requireSignedIn {
		return DecisionAllow, ""
	}
	return DecisionRedirect, g.redirectTo
}
