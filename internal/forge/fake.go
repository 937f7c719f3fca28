package forge

import (
	"context"
	"fmt"
	"sync"
)

// FakeForge is an in-memory Client used by pipeline tests. It reproduces the
// remote host's concurrency semantics: creates fail on existing names, and
// conditional updates fail on stale version tokens. All methods are safe for
// concurrent use.
type FakeForge struct {
	mu      sync.Mutex
	user    User
	repos   map[string]*Repository
	files   map[string]map[string]*RemoteFile // "owner/repo" -> path -> file
	pages   map[string]*PagesSite
	shaSeq  int
	counts  map[string]int
	created int

	// Per-method hooks, called with the 1-based invocation count before the
	// built-in behavior. A non-nil returned error is returned to the caller.
	GetRepositoryHook func(call int) error
	CreateRepoHook    func(call int) error
	GetFileHook       func(call int) error
	CreateFileHook    func(call int) error
	UpdateFileHook    func(call int) error
	GetPagesHook      func(call int) error
	CreatePagesHook   func(call int) error
	UpdatePagesHook   func(call int) error
	PagesBuildHook    func(call int) error
}

// NewFakeForge creates an empty fake owned by the given user.
func NewFakeForge(login string) *FakeForge {
	return &FakeForge{
		user:   User{Login: login, Name: login},
		repos:  make(map[string]*Repository),
		files:  make(map[string]map[string]*RemoteFile),
		pages:  make(map[string]*PagesSite),
		counts: make(map[string]int),
	}
}

func (f *FakeForge) hook(name string, h func(int) error) error {
	f.counts[name]++
	if h != nil {
		return h(f.counts[name])
	}
	return nil
}

func (f *FakeForge) nextSHA() string {
	f.shaSeq++
	return fmt.Sprintf("sha-%d", f.shaSeq)
}

func key(owner, repo string) string { return owner + "/" + repo }

// Calls returns how many times the named method has been invoked.
func (f *FakeForge) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[method]
}

// CreatedRepositories returns how many repository creations succeeded.
func (f *FakeForge) CreatedRepositories() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// FileContent returns the current content of a stored file, or nil.
func (f *FakeForge) FileContent(owner, repo, path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if files, ok := f.files[key(owner, repo)]; ok {
		if file, ok := files[path]; ok {
			out := make([]byte, len(file.Content))
			copy(out, file.Content)
			return out
		}
	}
	return nil
}

// SeedRepository pre-creates a repository without counting it as a create.
func (f *FakeForge) SeedRepository(name string) *Repository {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addRepo(name)
}

// SeedFile pre-creates a file, returning its version token.
func (f *FakeForge) SeedFile(owner, repo, path string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(owner, repo)
	if f.files[k] == nil {
		f.files[k] = make(map[string]*RemoteFile)
	}
	sha := f.nextSHA()
	f.files[k][path] = &RemoteFile{Path: path, SHA: sha, Content: content}
	return sha
}

// BumpFile simulates a concurrent writer: it replaces the content and
// invalidates any previously read version token.
func (f *FakeForge) BumpFile(owner, repo, path string, content []byte) {
	f.SeedFile(owner, repo, path, content)
}

func (f *FakeForge) addRepo(name string) *Repository {
	r := &Repository{
		Name:          name,
		FullName:      f.user.Login + "/" + name,
		Owner:         f.user.Login,
		DefaultBranch: "main",
		HTMLURL:       "https://github.com/" + f.user.Login + "/" + name,
	}
	f.repos[name] = r
	if f.files[key(f.user.Login, name)] == nil {
		f.files[key(f.user.Login, name)] = make(map[string]*RemoteFile)
	}
	return r
}

func (f *FakeForge) AuthenticatedUser(_ context.Context) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.user
	return &u, nil
}

func (f *FakeForge) GetRepository(_ context.Context, _, name string) (*Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("GetRepository", f.GetRepositoryHook); err != nil {
		return nil, err
	}
	r, ok := f.repos[name]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", name, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *FakeForge) CreateRepository(_ context.Context, name, _ string, _ bool) (*Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("CreateRepository", f.CreateRepoHook); err != nil {
		return nil, err
	}
	if _, ok := f.repos[name]; ok {
		return nil, fmt.Errorf("repository %s: %w", name, ErrAlreadyExists)
	}
	f.created++
	cp := *f.addRepo(name)
	return &cp, nil
}

func (f *FakeForge) GetFile(_ context.Context, owner, repo, path, _ string) (*RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("GetFile", f.GetFileHook); err != nil {
		return nil, err
	}
	files, ok := f.files[key(owner, repo)]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, repo, ErrNotFound)
	}
	file, ok := files[path]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	cp := *file
	cp.Content = append([]byte(nil), file.Content...)
	return &cp, nil
}

func (f *FakeForge) CreateFile(_ context.Context, owner, repo, path, _, _ string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("CreateFile", f.CreateFileHook); err != nil {
		return err
	}
	k := key(owner, repo)
	if f.files[k] == nil {
		f.files[k] = make(map[string]*RemoteFile)
	}
	if _, ok := f.files[k][path]; ok {
		return fmt.Errorf("file %s: %w", path, ErrAlreadyExists)
	}
	f.files[k][path] = &RemoteFile{Path: path, SHA: f.nextSHA(), Content: append([]byte(nil), content...)}
	return nil
}

func (f *FakeForge) UpdateFile(_ context.Context, owner, repo, path, _, _, sha string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("UpdateFile", f.UpdateFileHook); err != nil {
		return err
	}
	k := key(owner, repo)
	file, ok := f.files[k][path]
	if !ok {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if file.SHA != sha {
		return fmt.Errorf("file %s version token stale: %w", path, ErrConflict)
	}
	f.files[k][path] = &RemoteFile{Path: path, SHA: f.nextSHA(), Content: append([]byte(nil), content...)}
	return nil
}

func (f *FakeForge) GetPages(_ context.Context, owner, repo string) (*PagesSite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("GetPages", f.GetPagesHook); err != nil {
		return nil, err
	}
	p, ok := f.pages[key(owner, repo)]
	if !ok {
		return nil, fmt.Errorf("pages for %s/%s: %w", owner, repo, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *FakeForge) CreatePages(_ context.Context, owner, repo, branch, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("CreatePages", f.CreatePagesHook); err != nil {
		return err
	}
	k := key(owner, repo)
	if _, ok := f.pages[k]; ok {
		return fmt.Errorf("pages for %s/%s: %w", owner, repo, ErrConflict)
	}
	f.pages[k] = &PagesSite{
		URL:          fmt.Sprintf("https://%s.github.io/%s/", owner, repo),
		SourceBranch: branch,
		SourcePath:   path,
		Status:       "building",
	}
	return nil
}

func (f *FakeForge) UpdatePages(_ context.Context, owner, repo, branch, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("UpdatePages", f.UpdatePagesHook); err != nil {
		return err
	}
	k := key(owner, repo)
	p, ok := f.pages[k]
	if !ok {
		return fmt.Errorf("pages for %s/%s: %w", owner, repo, ErrNotFound)
	}
	p.SourceBranch = branch
	p.SourcePath = path
	return nil
}

func (f *FakeForge) RequestPagesBuild(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hook("RequestPagesBuild", f.PagesBuildHook)
}

func (f *FakeForge) LatestCommitSHA(_ context.Context, owner, repo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hook("LatestCommitSHA", nil); err != nil {
		return "", err
	}
	if _, ok := f.repos[repo]; !ok {
		return "", fmt.Errorf("repository %s: %w", repo, ErrNotFound)
	}
	return fmt.Sprintf("sha-%d", f.shaSeq), nil
}

var _ Client = (*FakeForge)(nil)
