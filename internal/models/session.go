package models

// CSRFToken is one per-form token held inside a session.
type CSRFToken struct {
	Token    string `json:"token"`
	IssuedAt int64  `json:"time"`
}

// Session is the server-side session state, persisted as
// data/sessions/sess_<id>.json. It is an explicit value passed through
// calls; the cookie only carries the ID.
type Session struct {
	ID            string               `json:"id"`
	Fingerprint   string               `json:"fingerprint"`
	Authenticated bool                 `json:"authenticated"`
	User          string               `json:"user"`
	Role          string               `json:"role"`
	LoginTime     int64                `json:"login_time"`
	Created       int64                `json:"created"`
	CSRFTokens    map[string]CSRFToken `json:"csrf_tokens"`
}

// LoginAttempts tracks failed logins per username hash, persisted as
// data/sessions/login_<sha256>.json.
type LoginAttempts struct {
	Attempts     int   `json:"attempts"`
	FirstAttempt int64 `json:"first_attempt"`
	LockedUntil  int64 `json:"locked_until"`
}
