// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

const perPage = 100

// HeaderObserver receives the headers of every source API response so quota
// headers can be fed to the rate-limit governor.
type HeaderObserver func(ctx context.Context, h http.Header)

// Client is a wrapper around the go-github client bound to one user's token.
type Client struct {
	gh       *github.Client
	logger   *slog.Logger
	observer HeaderObserver
}

// NewClient creates an authenticated client. baseURL selects a GitHub Enterprise
// API root and may be empty for github.com.
func NewClient(token, baseURL string, logger *slog.Logger, observer HeaderObserver) (*Client, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(tc)
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configure github base url: %w", err)
		}
	}

	return &Client{
		gh:       gh,
		logger:   logger,
		observer: observer,
	}, nil
}

// SplitFullName splits "owner/name".
func SplitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &apperrors.ErrInvalidRepoFormat{Repo: fullName}
	}
	return parts[0], parts[1], nil
}

// ListRepositories lists repositories the user owns or collaborates on.
func (c *Client) ListRepositories(ctx context.Context, skipForks bool) ([]model.SourceRepository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner,collaborator",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.SourceRepository
	for {
		c.logger.Debug("Fetching repositories page", "page", opts.Page)

		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, r := range repos {
			if skipForks && r.GetFork() {
				continue
			}
			all = append(all, toSourceRepository(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListStarred lists repositories starred by the user.
func (c *Client) ListStarred(ctx context.Context) ([]model.SourceRepository, error) {
	opts := &github.ActivityListStarredOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.SourceRepository
	for {
		c.logger.Debug("Fetching starred page", "page", opts.Page)

		starred, resp, err := c.gh.Activity.ListStarred(ctx, "", opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, s := range starred {
			repo := toSourceRepository(s.GetRepository())
			repo.IsStarred = true
			all = append(all, repo)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListOrganizations lists the user's organizations with their membership role.
func (c *Client) ListOrganizations(ctx context.Context) ([]model.SourceOrganization, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []model.SourceOrganization
	for {
		orgs, resp, err := c.gh.Organizations.List(ctx, "", opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, o := range orgs {
			role := "member"
			membership, mresp, err := c.gh.Organizations.GetOrgMembership(ctx, "", o.GetLogin())
			c.observe(ctx, mresp)
			if err != nil {
				c.logger.Warn("Could not read organization membership", "org", o.GetLogin(), "error", err)
			} else if membership.GetRole() != "" {
				role = membership.GetRole()
			}
			all = append(all, model.SourceOrganization{Name: o.GetLogin(), Role: role})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListOrganizationRepositories lists every repository of an organization.
func (c *Client) ListOrganizationRepositories(ctx context.Context, org string) ([]model.SourceRepository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.SourceRepository
	for {
		c.logger.Debug("Fetching organization repositories page", "org", org, "page", opts.Page)

		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, r := range repos {
			repo := toSourceRepository(r)
			repo.Organization = org
			all = append(all, repo)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetRateLimit fetches the core quota snapshot. It does not count against the quota.
func (c *Client) GetRateLimit(ctx context.Context) (model.RateLimitState, error) {
	limits, resp, err := c.gh.RateLimit.Get(ctx)
	c.observe(ctx, resp)
	if err != nil {
		return model.RateLimitState{}, c.translate(err)
	}
	core := limits.GetCore()
	return model.RateLimitState{
		Provider:  model.ProviderGitHub,
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Used:      core.Limit - core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

// ListLabels lists the labels of a repository.
func (c *Client) ListLabels(ctx context.Context, owner, name string) ([]model.Label, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []model.Label
	for {
		labels, resp, err := c.gh.Issues.ListLabels(ctx, owner, name, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, l := range labels {
			all = append(all, toLabel(l))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListIssues lists open and closed issues, oldest first. Pull requests are skipped.
func (c *Client) ListIssues(ctx context.Context, owner, name string) ([]model.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.Issue
	for {
		c.logger.Debug("Fetching issues page", "owner", owner, "repo", name, "page", opts.Page)

		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, i := range issues {
			if i.IsPullRequest() {
				continue
			}
			all = append(all, toIssue(i))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListIssueComments lists the comments of one issue.
func (c *Client) ListIssueComments(ctx context.Context, owner, name string, number int) ([]model.Comment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.Comment
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, number, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, cm := range comments {
			all = append(all, model.Comment{
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
				CreatedAt: cm.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListReleases returns up to limit releases, newest first. A limit <= 0 returns all.
func (c *Client) ListReleases(ctx context.Context, owner, name string, limit int) ([]model.Release, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []model.Release
	for {
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, name, opts)
		c.observe(ctx, resp)
		if err != nil {
			return nil, c.translate(err)
		}
		for _, r := range releases {
			all = append(all, model.Release{
				TagName:    r.GetTagName(),
				Name:       r.GetName(),
				Body:       r.GetBody(),
				Draft:      r.GetDraft(),
				Prerelease: r.GetPrerelease(),
				CreatedAt:  r.GetCreatedAt().Time,
			})
			if limit > 0 && len(all) == limit {
				return all, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) observe(ctx context.Context, resp *github.Response) {
	if c.observer == nil || resp == nil || resp.Response == nil {
		return
	}
	c.observer(ctx, resp.Header)
}

// translate maps go-github errors onto the domain error taxonomy.
func (c *Client) translate(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &apperrors.RateLimitError{
			Provider: string(model.ProviderGitHub),
			Reset:    rle.Rate.Reset.Time,
			Err:      err,
		}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &apperrors.TooManyRequestsError{
			Provider:   string(model.ProviderGitHub),
			RetryAfter: abuse.GetRetryAfter(),
			Err:        err,
		}
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		req := er.Response.Request
		apiErr := &apperrors.APIError{StatusCode: er.Response.StatusCode, Message: er.Message}
		if req != nil {
			apiErr.Method = req.Method
			apiErr.URL = req.URL.String()
		}
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", apperrors.ErrNotFound, apiErr)
		case http.StatusTooManyRequests:
			return &apperrors.TooManyRequestsError{Provider: string(model.ProviderGitHub), Err: apiErr}
		}
		return apiErr
	}
	return err
}

// toSourceRepository translates a github.Repository object to our internal model.
func toSourceRepository(r *github.Repository) model.SourceRepository {
	repo := model.SourceRepository{
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		CloneURL:    r.GetCloneURL(),
		HTMLURL:     r.GetHTMLURL(),
		Description: r.GetDescription(),
		IsPrivate:   r.GetPrivate(),
		IsFork:      r.GetFork(),
		IsArchived:  r.GetArchived(),
		IsDisabled:  r.GetDisabled(),
	}
	if r.GetOwner().GetType() == "Organization" {
		repo.Organization = r.GetOwner().GetLogin()
	}
	if r.PushedAt != nil {
		t := r.PushedAt.Time
		repo.PushedAt = &t
	}
	return repo
}

func toLabel(l *github.Label) model.Label {
	return model.Label{
		Name:        l.GetName(),
		Color:       l.GetColor(),
		Description: l.GetDescription(),
	}
}

func toIssue(i *github.Issue) model.Issue {
	issue := model.Issue{
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		Body:      i.GetBody(),
		Author:    i.GetUser().GetLogin(),
		HTMLURL:   i.GetHTMLURL(),
		Closed:    i.GetState() == "closed",
		CreatedAt: i.GetCreatedAt().Time,
	}
	for _, l := range i.Labels {
		issue.Labels = append(issue.Labels, toLabel(l))
	}
	return issue
}
