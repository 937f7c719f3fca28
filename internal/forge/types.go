package forge

import "context"

// Repository represents a repository on the remote forge.
type Repository struct {
	ID            int64
	Name          string
	FullName      string
	Owner         string
	Description   string
	Private       bool
	DefaultBranch string
	HTMLURL       string
}

// RemoteFile is a file read through the contents API. SHA is the version
// token required for a safe conditional update; it is valid only at the
// instant it was read.
type RemoteFile struct {
	Path    string
	SHA     string
	Content []byte
}

// PagesSite is the observed static-hosting configuration of a repository.
type PagesSite struct {
	URL          string
	SourceBranch string
	SourcePath   string
	Status       string
}

// User is the authenticated forge account.
type User struct {
	Login string
	Name  string
}

// Client is the adapter boundary to the remote forge. Implementations map
// remote responses to the sentinel errors in errors.go so callers branch on
// explicit status values rather than parsing messages.
type Client interface {
	// AuthenticatedUser returns the account owning the supplied token.
	AuthenticatedUser(ctx context.Context) (*User, error)

	// GetRepository fetches a repository; ErrNotFound if absent.
	GetRepository(ctx context.Context, owner, name string) (*Repository, error)

	// CreateRepository creates a repository for the authenticated user.
	// ErrAlreadyExists if the name is taken (including creation races).
	CreateRepository(ctx context.Context, name, description string, private bool) (*Repository, error)

	// GetFile reads a file and its version token; ErrNotFound if absent.
	GetFile(ctx context.Context, owner, repo, path, ref string) (*RemoteFile, error)

	// CreateFile creates a new file. ErrAlreadyExists if the path already
	// has content (a concurrent creator won).
	CreateFile(ctx context.Context, owner, repo, path, branch, message string, content []byte) error

	// UpdateFile replaces a file conditionally on the supplied version
	// token. ErrConflict if the token is stale, ErrNotFound if the file
	// vanished.
	UpdateFile(ctx context.Context, owner, repo, path, branch, message, sha string, content []byte) error

	// GetPages reads the hosting configuration; ErrNotFound if not set up.
	GetPages(ctx context.Context, owner, repo string) (*PagesSite, error)

	// CreatePages enables hosting from the given branch and path.
	// ErrConflict if another creator won the race, ErrPermissionDenied if
	// hosting is disabled for the repository.
	CreatePages(ctx context.Context, owner, repo, branch, path string) error

	// UpdatePages patches the hosting source; idempotent when already correct.
	UpdatePages(ctx context.Context, owner, repo, branch, path string) error

	// RequestPagesBuild asks the forge to schedule a fresh build.
	RequestPagesBuild(ctx context.Context, owner, repo string) error

	// LatestCommitSHA returns the head commit of the default branch.
	LatestCommitSHA(ctx context.Context, owner, repo string) (string, error)
}
