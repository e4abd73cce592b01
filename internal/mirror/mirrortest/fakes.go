// Package mirrortest provides in-memory platform clients for exercising the mirror
// engine without network access.
package mirrortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/gitea"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
)

// Destination is an in-memory Gitea.
type Destination struct {
	mu sync.Mutex

	Orgs     map[string]bool
	Repos    map[string]gitea.MigrateOptions
	Labels   map[string][]gitea.Label
	Issues   map[string][]gitea.CreateIssueOptions
	Comments map[string][]string
	Releases map[string][]string

	MigrateCalls   int
	CreateOrgCalls int
	SyncCalls      []string
	Archived       []string
	// FailMigrate makes MigrateRepository fail for these repository names.
	FailMigrate map[string]error
	// FailSync makes MirrorSync fail for these repository names.
	FailSync map[string]error
	// OrgRace makes CreateOrganization report a conflict after creating the org.
	OrgRace bool
}

func NewDestination() *Destination {
	return &Destination{
		Orgs:        make(map[string]bool),
		Repos:       make(map[string]gitea.MigrateOptions),
		Labels:      make(map[string][]gitea.Label),
		Issues:      make(map[string][]gitea.CreateIssueOptions),
		Comments:    make(map[string][]string),
		Releases:    make(map[string][]string),
		FailMigrate: make(map[string]error),
		FailSync:    make(map[string]error),
	}
}

// RepoKey is the case-insensitive key of Repos.
func RepoKey(owner, name string) string {
	return strings.ToLower(owner + "/" + name)
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
}

// AddRepo pretends a repository already exists at the destination.
func (f *Destination) AddRepo(owner, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Repos[RepoKey(owner, name)] = gitea.MigrateOptions{RepoOwner: owner, RepoName: name}
}

func (f *Destination) GetOrganization(_ context.Context, name string) (*gitea.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Orgs[strings.ToLower(name)] {
		return nil, notFound("org " + name)
	}
	return &gitea.Organization{UserName: name}, nil
}

func (f *Destination) CreateOrganization(_ context.Context, name string, visibility model.Visibility) (*gitea.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateOrgCalls++
	if f.Orgs[strings.ToLower(name)] || f.OrgRace {
		f.Orgs[strings.ToLower(name)] = true
		return nil, &apperrors.ConflictError{Resource: "organization", Name: name}
	}
	f.Orgs[strings.ToLower(name)] = true
	return &gitea.Organization{UserName: name, Visibility: string(visibility)}, nil
}

func (f *Destination) GetRepository(_ context.Context, owner, name string) (*gitea.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, ok := f.Repos[RepoKey(owner, name)]
	if !ok {
		return nil, notFound("repo " + owner + "/" + name)
	}
	return &gitea.Repository{Name: opts.RepoName, FullName: owner + "/" + name, Owner: gitea.User{Login: owner}, Mirror: true}, nil
}

func (f *Destination) MigrateRepository(_ context.Context, opts gitea.MigrateOptions) (*gitea.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MigrateCalls++
	if err := f.FailMigrate[opts.RepoName]; err != nil {
		return nil, err
	}
	if _, ok := f.Repos[RepoKey(opts.RepoOwner, opts.RepoName)]; ok {
		return nil, &apperrors.ConflictError{Resource: "repository", Name: opts.RepoName}
	}
	f.Repos[RepoKey(opts.RepoOwner, opts.RepoName)] = opts
	return &gitea.Repository{Name: opts.RepoName, Owner: gitea.User{Login: opts.RepoOwner}}, nil
}

func (f *Destination) MirrorSync(_ context.Context, owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Repos[RepoKey(owner, name)]; !ok {
		return notFound("repo " + owner + "/" + name)
	}
	if err := f.FailSync[name]; err != nil {
		return err
	}
	f.SyncCalls = append(f.SyncCalls, owner+"/"+name)
	return nil
}

func (f *Destination) ArchiveRepository(_ context.Context, owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Repos[RepoKey(owner, name)]; !ok {
		return notFound("repo " + owner + "/" + name)
	}
	f.Archived = append(f.Archived, owner+"/"+name)
	return nil
}

func (f *Destination) ListLabels(_ context.Context, owner, name string) ([]gitea.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gitea.Label(nil), f.Labels[RepoKey(owner, name)]...), nil
}

func (f *Destination) CreateLabel(_ context.Context, owner, name string, label model.Label) (*gitea.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := RepoKey(owner, name)
	l := gitea.Label{ID: int64(len(f.Labels[k]) + 1), Name: label.Name, Color: label.Color}
	f.Labels[k] = append(f.Labels[k], l)
	return &l, nil
}

func (f *Destination) CreateIssue(_ context.Context, owner, name string, opts gitea.CreateIssueOptions) (*gitea.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := RepoKey(owner, name)
	f.Issues[k] = append(f.Issues[k], opts)
	n := int64(len(f.Issues[k]))
	return &gitea.Issue{ID: n, Number: n}, nil
}

func (f *Destination) CreateIssueComment(_ context.Context, owner, name string, number int64, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fmt.Sprintf("%s#%d", RepoKey(owner, name), number)
	f.Comments[k] = append(f.Comments[k], body)
	return nil
}

func (f *Destination) CreateRelease(_ context.Context, owner, name string, rel model.Release) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := RepoKey(owner, name)
	for _, tag := range f.Releases[k] {
		if tag == rel.TagName {
			return &apperrors.ConflictError{Resource: "release", Name: tag}
		}
	}
	f.Releases[k] = append(f.Releases[k], rel.TagName)
	return nil
}

// Source serves canned source data.
type Source struct {
	Repos        []model.SourceRepository
	Starred      []model.SourceRepository
	Orgs         []model.SourceOrganization
	OrgRepos     map[string][]model.SourceRepository
	Labels       []model.Label
	Issues       []model.Issue
	IssueComment map[int][]model.Comment
	Releases     []model.Release
	Rate         model.RateLimitState
	// ListErr fails ListRepositories.
	ListErr error

	mu        sync.Mutex
	listCalls int
}

func (f *Source) ListRepositories(_ context.Context, skipForks bool) ([]model.SourceRepository, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []model.SourceRepository
	for _, r := range f.Repos {
		if skipForks && r.IsFork {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *Source) ListStarred(context.Context) ([]model.SourceRepository, error) {
	return f.Starred, nil
}

func (f *Source) ListOrganizations(context.Context) ([]model.SourceOrganization, error) {
	return f.Orgs, nil
}

func (f *Source) ListOrganizationRepositories(_ context.Context, org string) ([]model.SourceRepository, error) {
	return f.OrgRepos[org], nil
}

func (f *Source) GetRateLimit(context.Context) (model.RateLimitState, error) {
	if f.Rate.Limit == 0 {
		return model.RateLimitState{Provider: model.ProviderGitHub, Limit: 5000, Remaining: 5000}, nil
	}
	return f.Rate, nil
}

func (f *Source) ListLabels(context.Context, string, string) ([]model.Label, error) {
	return f.Labels, nil
}

func (f *Source) ListIssues(context.Context, string, string) ([]model.Issue, error) {
	return f.Issues, nil
}

func (f *Source) ListIssueComments(_ context.Context, _, _ string, number int) ([]model.Comment, error) {
	return f.IssueComment[number], nil
}

func (f *Source) ListReleases(_ context.Context, _, _ string, limit int) ([]model.Release, error) {
	if limit > 0 && len(f.Releases) > limit {
		return f.Releases[:limit], nil
	}
	return f.Releases, nil
}

// ListCalls reports how often ListRepositories ran.
func (f *Source) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// Clients hands out the same fakes for every configuration.
type Clients struct {
	Src  *Source
	Dest *Destination
	// DestErr fails every Destination call.
	DestErr error
}

func (c *Clients) Source(context.Context, *model.Configuration) (mirror.SourceClient, error) {
	return c.Src, nil
}

func (c *Clients) Destination(context.Context, *model.Configuration) (mirror.DestinationClient, error) {
	if c.DestErr != nil {
		return nil, c.DestErr
	}
	return c.Dest, nil
}

func (c *Clients) SourceToken(_ context.Context, cfg *model.Configuration) (string, error) {
	return cfg.Source.Token, nil
}

var (
	_ mirror.SourceClient      = (*Source)(nil)
	_ mirror.DestinationClient = (*Destination)(nil)
	_ mirror.Clients           = (*Clients)(nil)
)
