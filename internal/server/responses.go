package server

// PublishResponse is the success payload of POST /api-endpoint.
type PublishResponse struct {
	Status    string `json:"status"`
	RepoURL   string `json:"repo_url"`
	PagesURL  string `json:"pages_url"`
	CommitSHA string `json:"commit_sha"`
	Warning   string `json:"warning,omitempty"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
}

// EvaluationPayload is what gets POSTed to the caller's evaluation URL once
// the publish completes.
type EvaluationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}
