// internal/gitea/client.go
package gitea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

const (
	// DefaultTimeout bounds a single API call. Migrations of large repositories are
	// synchronous on the Gitea side, so this is generous.
	DefaultTimeout = 10 * time.Minute

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// bodySnippetSize is how much of an unexpected body ends up in error messages.
	bodySnippetSize = 512

	UserAgent = "repo-mirror/1.0"
)

// HeaderObserver receives the headers of every destination API response.
type HeaderObserver func(ctx context.Context, h http.Header)

// Client talks to the Gitea REST API with a user's access token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
	observer   HeaderObserver
}

// NewClient creates a client for the Gitea instance at baseURL.
func NewClient(baseURL, token string, logger *slog.Logger, observer HeaderObserver) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
		observer:   observer,
	}
}

// GetOrganization returns the organization or an error satisfying errors.IsNotFound.
func (c *Client) GetOrganization(ctx context.Context, name string) (*Organization, error) {
	var org Organization
	if err := c.do(ctx, http.MethodGet, "/orgs/"+url.PathEscape(name), nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateOrganization creates an organization. A lost creation race surfaces as a
// ConflictError so the caller can re-query.
func (c *Client) CreateOrganization(ctx context.Context, name string, visibility model.Visibility) (*Organization, error) {
	var org Organization
	err := c.do(ctx, http.MethodPost, "/orgs", createOrgOption{UserName: name, Visibility: string(visibility)}, &org)
	if err != nil {
		if isAlreadyExists(err) {
			return nil, &apperrors.ConflictError{Resource: "organization", Name: name, Detail: err.Error()}
		}
		return nil, err
	}
	return &org, nil
}

// GetRepository returns the repository or an error satisfying errors.IsNotFound.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	var repo Repository
	if err := c.do(ctx, http.MethodGet, repoPath(owner, name), nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// MigrateRepository creates a repository on the destination as a mirror of CloneAddr.
func (c *Client) MigrateRepository(ctx context.Context, opts MigrateOptions) (*Repository, error) {
	if opts.Service == "" {
		opts.Service = "git"
	}
	var repo Repository
	if err := c.do(ctx, http.MethodPost, "/repos/migrate", opts, &repo); err != nil {
		if isAlreadyExists(err) {
			return nil, &apperrors.ConflictError{Resource: "repository", Name: opts.RepoOwner + "/" + opts.RepoName, Detail: err.Error()}
		}
		return nil, err
	}
	return &repo, nil
}

// MirrorSync asks the destination to pull from its mirror upstream.
func (c *Client) MirrorSync(ctx context.Context, owner, name string) error {
	return c.do(ctx, http.MethodPost, repoPath(owner, name)+"/mirror-sync", nil, nil)
}

// ArchiveRepository flips the archived flag on a destination repository.
func (c *Client) ArchiveRepository(ctx context.Context, owner, name string) error {
	archived := true
	return c.do(ctx, http.MethodPatch, repoPath(owner, name), editRepoOption{Archived: &archived}, nil)
}

// ListLabels lists the labels of a destination repository.
func (c *Client) ListLabels(ctx context.Context, owner, name string) ([]Label, error) {
	var labels []Label
	if err := c.do(ctx, http.MethodGet, repoPath(owner, name)+"/labels?limit=50", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CreateLabel creates a label. An existing label with the same name is a ConflictError.
func (c *Client) CreateLabel(ctx context.Context, owner, name string, label model.Label) (*Label, error) {
	color := label.Color
	if color != "" && !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if color == "" {
		color = "#ededed"
	}
	var out Label
	err := c.do(ctx, http.MethodPost, repoPath(owner, name)+"/labels",
		createLabelOption{Name: label.Name, Color: color, Description: label.Description}, &out)
	if err != nil {
		if isAlreadyExists(err) {
			return nil, &apperrors.ConflictError{Resource: "label", Name: label.Name, Detail: err.Error()}
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateIssue(ctx context.Context, owner, name string, opts CreateIssueOptions) (*Issue, error) {
	var out Issue
	if err := c.do(ctx, http.MethodPost, repoPath(owner, name)+"/issues", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateIssueComment(ctx context.Context, owner, name string, number int64, body string) error {
	path := fmt.Sprintf("%s/issues/%d/comments", repoPath(owner, name), number)
	return c.do(ctx, http.MethodPost, path, createCommentOption{Body: body}, nil)
}

// CreateRelease recreates a source release. A release for an existing tag is a ConflictError.
func (c *Client) CreateRelease(ctx context.Context, owner, name string, rel model.Release) error {
	err := c.do(ctx, http.MethodPost, repoPath(owner, name)+"/releases", createReleaseOption{
		TagName:    rel.TagName,
		Name:       rel.Name,
		Body:       rel.Body,
		Draft:      rel.Draft,
		Prerelease: rel.Prerelease,
	}, nil)
	if err != nil && isAlreadyExists(err) {
		return &apperrors.ConflictError{Resource: "release", Name: rel.TagName, Detail: err.Error()}
	}
	return err
}

func repoPath(owner, name string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
}

// do performs one API call. in is JSON-encoded when non-nil; out, when non-nil, is
// decoded from a response that must declare and contain JSON.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := c.baseURL + "/api/v1" + path

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	c.logger.Debug("Calling destination API", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if c.observer != nil {
		c.observer(ctx, resp.Header)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(payload) > MaxResponseSize {
		return fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	if resp.StatusCode >= 400 {
		return c.statusError(req, resp, payload)
	}
	if out == nil {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	malformed := func(cause error) error {
		return &apperrors.MalformedResponseError{
			Method:      method,
			URL:         endpoint,
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			Body:        snippet(payload),
			Err:         cause,
		}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return malformed(fmt.Errorf("expected application/json"))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return malformed(err)
	}
	return nil
}

func (c *Client) statusError(req *http.Request, resp *http.Response, payload []byte) error {
	apiErr := &apperrors.APIError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Message:    errorMessage(payload),
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, apiErr)
	case http.StatusTooManyRequests:
		return &apperrors.TooManyRequestsError{
			Provider:   string(model.ProviderGitea),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        apiErr,
		}
	}
	return apiErr
}

// errorMessage extracts Gitea's {"message": ...} or falls back to the raw body.
func errorMessage(payload []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return snippet(payload)
}

func isAlreadyExists(err error) bool {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Message), "already exist")
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func snippet(b []byte) string {
	if len(b) > bodySnippetSize {
		return string(b[:bodySnippetSize]) + "..."
	}
	return string(b)
}
