package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/gitea"
	"repo-mirror/internal/github"
	"repo-mirror/internal/model"
	"repo-mirror/internal/retry"
)

// metadataSummary counts what was carried over for one unit.
type metadataSummary struct {
	Labels   int
	Issues   int
	Comments int
	Releases int
	Failed   int
}

func (m metadataSummary) String() string {
	s := fmt.Sprintf("labels=%d issues=%d comments=%d releases=%d", m.Labels, m.Issues, m.Comments, m.Releases)
	if m.Failed > 0 {
		s += fmt.Sprintf(" failed=%d", m.Failed)
	}
	return s
}

// mirrorMetadata recreates labels, issues with their comments, and releases on the
// destination. Listing failures fail the unit; single items that keep failing are
// counted and reported in the summary.
func (s *Service) mirrorMetadata(ctx context.Context, src SourceClient, dest DestinationClient, repo *model.Repository, cfg *model.Configuration, owner string) (string, error) {
	srcOwner, srcName, err := github.SplitFullName(repo.FullName)
	if err != nil {
		return "", err
	}
	userID := repo.UserID
	var summary metadataSummary

	if cfg.Source.MirrorIssues {
		labelIDs, err := s.mirrorLabels(ctx, src, dest, userID, srcOwner, srcName, owner, repo.Name, cfg, &summary)
		if err != nil {
			return "", err
		}
		if err := s.mirrorIssues(ctx, src, dest, userID, srcOwner, srcName, owner, repo.Name, cfg, labelIDs, &summary); err != nil {
			return "", err
		}
	}

	if cfg.Source.MirrorReleases {
		if err := s.mirrorReleases(ctx, src, dest, userID, srcOwner, srcName, owner, repo.Name, cfg, &summary); err != nil {
			return "", err
		}
	}

	return summary.String(), nil
}

// mirrorLabels creates missing labels and returns destination label ids by normalized name.
func (s *Service) mirrorLabels(ctx context.Context, src SourceClient, dest DestinationClient, userID uuid.UUID, srcOwner, srcName, owner, name string, cfg *model.Configuration, summary *metadataSummary) (map[string]int64, error) {
	labels, err := source(ctx, s, userID, func(ctx context.Context) ([]model.Label, error) {
		return src.ListLabels(ctx, srcOwner, srcName)
	})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	existing, err := destination(ctx, s, userID, func(ctx context.Context) ([]gitea.Label, error) {
		return dest.ListLabels(ctx, owner, name)
	})
	if err != nil {
		return nil, fmt.Errorf("list destination labels: %w", err)
	}

	ids := make(map[string]int64, len(labels))
	for _, l := range existing {
		ids[model.NormalizeName(l.Name)] = l.ID
	}
	var missing []model.Label
	for _, l := range labels {
		if _, ok := ids[model.NormalizeName(l.Name)]; !ok {
			missing = append(missing, l)
		}
	}

	results := retry.Run(ctx, missing, func(ctx context.Context, label model.Label) (*gitea.Label, error) {
		created, err := destination(ctx, s, userID, func(ctx context.Context) (*gitea.Label, error) {
			return dest.CreateLabel(ctx, owner, name, label)
		})
		if apperrors.IsConflict(err) {
			return nil, nil
		}
		return created, err
	}, executorOptions[model.Label, *gitea.Label](s, cfg, s.opts.Concurrency, "label"))

	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
			continue
		}
		if res.Value != nil {
			ids[model.NormalizeName(res.Item.Name)] = res.Value.ID
			summary.Labels++
		}
	}
	return ids, nil
}

func (s *Service) mirrorIssues(ctx context.Context, src SourceClient, dest DestinationClient, userID uuid.UUID, srcOwner, srcName, owner, name string, cfg *model.Configuration, labelIDs map[string]int64, summary *metadataSummary) error {
	issues, err := source(ctx, s, userID, func(ctx context.Context) ([]model.Issue, error) {
		return src.ListIssues(ctx, srcOwner, srcName)
	})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	var mu sync.Mutex
	results := retry.Run(ctx, issues, func(ctx context.Context, issue model.Issue) (int, error) {
		var ids []int64
		for _, l := range issue.Labels {
			if id, ok := labelIDs[model.NormalizeName(l.Name)]; ok {
				ids = append(ids, id)
			}
		}
		created, err := destination(ctx, s, userID, func(ctx context.Context) (*gitea.Issue, error) {
			return dest.CreateIssue(ctx, owner, name, gitea.CreateIssueOptions{
				Title:  issue.Title,
				Body:   issueBody(issue),
				Labels: ids,
				Closed: issue.Closed,
			})
		})
		if err != nil {
			return 0, err
		}

		comments, err := source(ctx, s, userID, func(ctx context.Context) ([]model.Comment, error) {
			return src.ListIssueComments(ctx, srcOwner, srcName, issue.Number)
		})
		if err != nil {
			// The issue exists now; retrying it would duplicate it.
			s.logger.Warn("Failed to list issue comments", "issue", issue.Number, "error", err)
			mu.Lock()
			summary.Failed++
			mu.Unlock()
			return 0, nil
		}

		// Comments keep their order, so they run one at a time.
		copts := executorOptions[model.Comment, struct{}](s, cfg, 1, "comment")
		cres := retry.Run(ctx, comments, func(ctx context.Context, c model.Comment) (struct{}, error) {
			return struct{}{}, destinationDo(ctx, s, userID, func(ctx context.Context) error {
				return dest.CreateIssueComment(ctx, owner, name, created.Number, commentBody(c))
			})
		}, copts)

		mu.Lock()
		summary.Comments += retry.Succeeded(cres)
		summary.Failed += len(retry.Failures(cres))
		mu.Unlock()
		return len(comments), nil
	}, executorOptions[model.Issue, int](s, cfg, s.opts.Concurrency, "issue"))

	summary.Issues += retry.Succeeded(results)
	summary.Failed += len(retry.Failures(results))
	return nil
}

func (s *Service) mirrorReleases(ctx context.Context, src SourceClient, dest DestinationClient, userID uuid.UUID, srcOwner, srcName, owner, name string, cfg *model.Configuration, summary *metadataSummary) error {
	limit := cfg.Source.ReleaseLimit
	if limit <= 0 {
		limit = DefaultReleaseLimit
	}
	releases, err := source(ctx, s, userID, func(ctx context.Context) ([]model.Release, error) {
		return src.ListReleases(ctx, srcOwner, srcName, limit)
	})
	if err != nil {
		return fmt.Errorf("list releases: %w", err)
	}

	results := retry.Run(ctx, releases, func(ctx context.Context, rel model.Release) (bool, error) {
		err := destinationDo(ctx, s, userID, func(ctx context.Context) error {
			return dest.CreateRelease(ctx, owner, name, rel)
		})
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return err == nil, err
	}, executorOptions[model.Release, bool](s, cfg, s.opts.Concurrency, "release"))

	for _, res := range results {
		switch {
		case res.Err != nil:
			summary.Failed++
		case res.Value:
			summary.Releases++
		}
	}
	return nil
}

func issueBody(issue model.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Originally created by @%s on %s*", issue.Author, issue.CreatedAt.Format("2006-01-02"))
	if issue.HTMLURL != "" {
		fmt.Fprintf(&b, " ([source](%s))", issue.HTMLURL)
	}
	if issue.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(issue.Body)
	}
	return b.String()
}

func commentBody(c model.Comment) string {
	return fmt.Sprintf("*@%s commented on %s*\n\n%s", c.Author, c.CreatedAt.Format("2006-01-02"), c.Body)
}
