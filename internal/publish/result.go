package publish

// Task identifies one publish request. It is immutable once handed to the
// pipeline; concurrent tasks interact only through the remote collection.
type Task struct {
	// Name is the remote collection (repository) name, unique per task.
	Name string

	// Round is the monotonic revision counter, starting at 1. It feeds
	// asset naming so filenames never collide across rounds.
	Round int

	// Document is the body to publish at the index path.
	Document string

	// Brief optionally describes the task for README generation.
	Brief string
}

// Result is the final pipeline output. It is constructed once all stages
// complete or exhaust their retries and is never mutated afterward.
type Result struct {
	// RepoURL is the web URL of the remote collection.
	RepoURL string `json:"repo_url"`

	// CommitSHA is the head revision after the publish, or "unknown" when
	// the final read failed (non-fatal).
	CommitSHA string `json:"commit_sha"`

	// PagesURL is the public hosting URL derived from owner and name. It
	// is reported even when hosting configuration could not be confirmed.
	PagesURL string `json:"pages_url"`

	// Configured reports whether the hosting configuration converged to
	// the desired branch and path.
	Configured bool `json:"pages_configured"`

	// Live reports whether the hosting URL served a success response
	// before the poll timeout. Always false when Configured is false.
	Live bool `json:"pages_live"`

	// Warning carries a non-fatal degradation notice, e.g. hosting setup
	// denied. Empty on a clean publish.
	Warning string `json:"warning,omitempty"`
}
