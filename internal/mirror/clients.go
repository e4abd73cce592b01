package mirror

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/gitea"
	"repo-mirror/internal/github"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
)

// SourceClient is what the engine consumes from the source platform.
type SourceClient interface {
	ListRepositories(ctx context.Context, skipForks bool) ([]model.SourceRepository, error)
	ListStarred(ctx context.Context) ([]model.SourceRepository, error)
	ListOrganizations(ctx context.Context) ([]model.SourceOrganization, error)
	ListOrganizationRepositories(ctx context.Context, org string) ([]model.SourceRepository, error)
	GetRateLimit(ctx context.Context) (model.RateLimitState, error)
	ListLabels(ctx context.Context, owner, name string) ([]model.Label, error)
	ListIssues(ctx context.Context, owner, name string) ([]model.Issue, error)
	ListIssueComments(ctx context.Context, owner, name string, number int) ([]model.Comment, error)
	ListReleases(ctx context.Context, owner, name string, limit int) ([]model.Release, error)
}

// DestinationClient is what the engine consumes from the destination platform.
type DestinationClient interface {
	GetOrganization(ctx context.Context, name string) (*gitea.Organization, error)
	CreateOrganization(ctx context.Context, name string, visibility model.Visibility) (*gitea.Organization, error)
	GetRepository(ctx context.Context, owner, name string) (*gitea.Repository, error)
	MigrateRepository(ctx context.Context, opts gitea.MigrateOptions) (*gitea.Repository, error)
	MirrorSync(ctx context.Context, owner, name string) error
	ArchiveRepository(ctx context.Context, owner, name string) error
	ListLabels(ctx context.Context, owner, name string) ([]gitea.Label, error)
	CreateLabel(ctx context.Context, owner, name string, label model.Label) (*gitea.Label, error)
	CreateIssue(ctx context.Context, owner, name string, opts gitea.CreateIssueOptions) (*gitea.Issue, error)
	CreateIssueComment(ctx context.Context, owner, name string, number int64, body string) error
	CreateRelease(ctx context.Context, owner, name string, rel model.Release) error
}

// Clients builds platform clients for a configuration. Tokens are revealed here and
// nowhere else.
type Clients interface {
	Source(ctx context.Context, cfg *model.Configuration) (SourceClient, error)
	Destination(ctx context.Context, cfg *model.Configuration) (DestinationClient, error)
	SourceToken(ctx context.Context, cfg *model.Configuration) (string, error)
}

// RevealFunc turns a stored credential into the plain token used on the wire.
type RevealFunc func(ctx context.Context, sealed string) (string, error)

// PlatformClients creates go-github and Gitea clients whose responses feed the governor.
type PlatformClients struct {
	Governor  *ratelimit.Governor
	Logger    *slog.Logger
	GitHubURL string
	Reveal    RevealFunc
}

func (p *PlatformClients) reveal(ctx context.Context, sealed string) (string, error) {
	if sealed == "" {
		return "", apperrors.ErrMissingCredentials
	}
	if p.Reveal == nil {
		return sealed, nil
	}
	token, err := p.Reveal(ctx, sealed)
	if err != nil {
		return "", fmt.Errorf("failed to reveal token: %w", err)
	}
	return token, nil
}

func (p *PlatformClients) SourceToken(ctx context.Context, cfg *model.Configuration) (string, error) {
	return p.reveal(ctx, cfg.Source.Token)
}

func (p *PlatformClients) Source(ctx context.Context, cfg *model.Configuration) (SourceClient, error) {
	token, err := p.reveal(ctx, cfg.Source.Token)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.Source.APIURL
	if baseURL == "" {
		baseURL = p.GitHubURL
	}
	var observer github.HeaderObserver
	if p.Governor != nil {
		observer = p.Governor.Observer(cfg.UserID, model.ProviderGitHub)
	}
	client, err := github.NewClient(token, baseURL, p.Logger, observer)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (p *PlatformClients) Destination(ctx context.Context, cfg *model.Configuration) (DestinationClient, error) {
	if cfg.Destination.URL == "" {
		return nil, apperrors.ErrMissingCredentials
	}
	token, err := p.reveal(ctx, cfg.Destination.Token)
	if err != nil {
		return nil, err
	}
	var observer gitea.HeaderObserver
	if p.Governor != nil {
		observer = p.Governor.Observer(cfg.UserID, model.ProviderGitea)
	}
	return gitea.NewClient(cfg.Destination.URL, token, p.Logger, observer), nil
}
