// Package evidence records publish outcomes for auditing: a detached HTTP
// post to a remote evidence endpoint plus a local SQLite journal. Both sinks
// are best-effort and their failures are swallowed by design; evidence never
// blocks or alters a publish result.
package evidence

import "time"

// Record is one audit entry describing a publish request and its outcome.
type Record struct {
	RequestID string    `json:"request_id"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Email     string    `json:"email,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
	RemoteIP  string    `json:"req_ip"`
	URL       string    `json:"req_url"`
	Status    string    `json:"status"`
	RepoURL   string    `json:"repo_url,omitempty"`
	PagesURL  string    `json:"pages_url,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
