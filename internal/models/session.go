package models

// Freshness is the observed state of a session token.
type Freshness string

const (
	// FreshnessFresh means the token has not produced an expiry signal.
	FreshnessFresh Freshness = "fresh"
	// FreshnessExpired means the remote side signalled expiry; the token
	// must not be used again before a successful refresh.
	FreshnessExpired Freshness = "expired"
)

// SessionToken holds the authentication artifacts of one run.
// Owned exclusively by the session store; only login/refresh mutate it.
type SessionToken struct {
	AuthToken string    `json:"login_at"` // value of the login-at header
	UserKey   string    `json:"userkey"`  // device key carried as the USERKEY cookie
	Freshness Freshness `json:"-"`
}

// Usable reports whether the token may authenticate a request.
func (t SessionToken) Usable() bool {
	return t.AuthToken != "" && t.Freshness != FreshnessExpired
}
