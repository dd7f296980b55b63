package auth

// Identity is the normalized shape of a signed-in user as supplied by the
// host application. The library never manages credentials itself.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// State is the host application's auth snapshot. Loading true means the host
// has not resolved its session yet and no reads or subscriptions should be
// attempted. A nil User means signed out.
type State struct {
	User    *Identity
	Loading bool
}

// Ready reports whether the state carries a usable identity.
func (s State) Ready() bool {
	return !s.Loading && s.User != nil && s.User.UID != ""
}

// Adapter is implemented by the host application to expose its current auth
// state. The library polls it at operation boundaries and the host pushes
// changes through the session layer on sign-in/sign-out.
type Adapter interface {
	State() State
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func() State

func (f AdapterFunc) State() State { return f() }

// StaticAdapter returns an Adapter that always reports the given identity,
// useful for server-side callers that resolved the user from a token.
func StaticAdapter(id Identity) Adapter {
	return AdapterFunc(func() State {
		return State{User: &id}
	})
}
