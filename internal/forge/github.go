package forge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	cfg "git.home.luguber.info/inful/pagepub/internal/config"
)

// GitHubClient implements Client for GitHub.
type GitHubClient struct {
	httpClient *http.Client
	baseURL    string
	apiURL     string
	token      string
}

// NewGitHubClient creates a new GitHub client.
func NewGitHubClient(fc cfg.ForgeConfig) (*GitHubClient, error) {
	if fc.Type != "" && fc.Type != "github" {
		return nil, fmt.Errorf("invalid forge type for GitHub client: %s", fc.Type)
	}
	if fc.Token == "" {
		return nil, fmt.Errorf("GitHub client requires token authentication")
	}

	client := &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     fc.APIURL,
		baseURL:    fc.BaseURL,
		token:      fc.Token,
	}

	// Set default URLs if not provided
	if client.apiURL == "" {
		client.apiURL = "https://api.github.com"
	}
	if client.baseURL == "" {
		client.baseURL = "https://github.com"
	}

	return client, nil
}

// githubUser represents the authenticated GitHub account.
type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// githubRepo represents a GitHub repository.
type githubRepo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// githubContents represents a contents API response for a single file.
type githubContents struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// githubPages represents a Pages site configuration.
type githubPages struct {
	URL     string `json:"url"`
	HTMLURL string `json:"html_url"`
	Status  string `json:"status"`
	Source  struct {
		Branch string `json:"branch"`
		Path   string `json:"path"`
	} `json:"source"`
}

// githubCommit represents a single commit in a list response.
type githubCommit struct {
	SHA string `json:"sha"`
}

// AuthenticatedUser returns the account owning the configured token.
func (c *GitHubClient) AuthenticatedUser(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var u githubUser
	if err := c.doRequest(req, &u); err != nil {
		return nil, err
	}
	return &User{Login: u.Login, Name: u.Name}, nil
}

// GetRepository gets a repository; ErrNotFound when absent.
func (c *GitHubClient) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s", owner, repo)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var gr githubRepo
	if err := c.doRequest(req, &gr); err != nil {
		return nil, err
	}
	return convertGitHubRepo(&gr), nil
}

// CreateRepository creates a repository for the authenticated user.
func (c *GitHubClient) CreateRepository(ctx context.Context, name, description string, private bool) (*Repository, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"private":     private,
		"auto_init":   false,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/user/repos", payload)
	if err != nil {
		return nil, err
	}

	var gr githubRepo
	if err := c.doRequest(req, &gr); err != nil {
		return nil, err
	}
	return convertGitHubRepo(&gr), nil
}

// GetFile reads a file plus its version token via the contents API.
func (c *GitHubClient) GetFile(ctx context.Context, owner, repo, filePath, ref string) (*RemoteFile, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, filePath)
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var gc githubContents
	if err := c.doRequest(req, &gc); err != nil {
		return nil, err
	}

	var content []byte
	if gc.Content != "" {
		// Contents API wraps base64 at 60 columns; strip whitespace first.
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' {
				return -1
			}
			return r
		}, gc.Content)
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("decode contents of %s: %w", filePath, err)
		}
		content = decoded
	}

	return &RemoteFile{Path: gc.Path, SHA: gc.SHA, Content: content}, nil
}

// CreateFile creates a new file on the given branch.
func (c *GitHubClient) CreateFile(ctx context.Context, owner, repo, filePath, branch, message string, content []byte) error {
	return c.putContents(ctx, owner, repo, filePath, branch, message, "", content)
}

// UpdateFile replaces a file, conditional on the supplied version token.
func (c *GitHubClient) UpdateFile(ctx context.Context, owner, repo, filePath, branch, message, sha string, content []byte) error {
	return c.putContents(ctx, owner, repo, filePath, branch, message, sha, content)
}

func (c *GitHubClient) putContents(ctx context.Context, owner, repo, filePath, branch, message, sha string, content []byte) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, filePath)
	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if branch != "" {
		payload["branch"] = branch
	}
	if sha != "" {
		payload["sha"] = sha
	}

	req, err := c.newRequest(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// GetPages reads the hosting configuration.
func (c *GitHubClient) GetPages(ctx context.Context, owner, repo string) (*PagesSite, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/pages", owner, repo)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var gp githubPages
	if err := c.doRequest(req, &gp); err != nil {
		return nil, err
	}
	return &PagesSite{
		URL:          gp.HTMLURL,
		SourceBranch: gp.Source.Branch,
		SourcePath:   gp.Source.Path,
		Status:       gp.Status,
	}, nil
}

// CreatePages enables hosting from the given branch and path.
func (c *GitHubClient) CreatePages(ctx context.Context, owner, repo, branch, sourcePath string) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/pages", owner, repo)
	payload := map[string]any{
		"source": map[string]string{"branch": branch, "path": sourcePath},
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// UpdatePages patches the hosting source.
func (c *GitHubClient) UpdatePages(ctx context.Context, owner, repo, branch, sourcePath string) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/pages", owner, repo)
	payload := map[string]any{
		"source": map[string]string{"branch": branch, "path": sourcePath},
	}
	req, err := c.newRequest(ctx, http.MethodPatch, endpoint, payload)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// RequestPagesBuild asks GitHub to schedule a fresh Pages build.
func (c *GitHubClient) RequestPagesBuild(ctx context.Context, owner, repo string) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/pages/builds", owner, repo)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// LatestCommitSHA returns the head commit of the default branch.
func (c *GitHubClient) LatestCommitSHA(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/commits?per_page=1", owner, repo)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var commits []githubCommit
	if err := c.doRequest(req, &commits); err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits in %s/%s: %w", owner, repo, ErrNotFound)
	}
	return commits[0].SHA, nil
}

// Helper methods

func convertGitHubRepo(gr *githubRepo) *Repository {
	return &Repository{
		ID:            gr.ID,
		Name:          gr.Name,
		FullName:      gr.FullName,
		Owner:         gr.Owner.Login,
		Description:   gr.Description,
		Private:       gr.Private,
		DefaultBranch: gr.DefaultBranch,
		HTMLURL:       gr.HTMLURL,
	}
}

func (c *GitHubClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, err
	}
	// Keep query strings out of path.Join.
	rawPath, query, _ := strings.Cut(endpoint, "?")
	u.Path = path.Join(u.Path, rawPath)
	u.RawQuery = query

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		var err error
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "PagePub/1.0")

	return req, nil
}

func (c *GitHubClient) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newAPIError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// newAPIError reads the remote error message and tags it with the sentinel
// matching the status code, so callers branch with errors.Is.
func newAPIError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(body, &payload)
	if payload.Message == "" {
		payload.Message = strings.TrimSpace(string(body))
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    payload.Message,
		sentinel:   classifyStatus(resp.StatusCode, payload.Message),
	}
}

func classifyStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		m := strings.ToLower(message)
		if strings.Contains(m, "name already exists") {
			return ErrAlreadyExists
		}
		// A create against an existing path is rejected with a complaint
		// about the missing "sha" field.
		if strings.Contains(m, "sha") {
			return ErrAlreadyExists
		}
		return nil
	default:
		return nil
	}
}
