// internal/model/configuration.go
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MirrorStrategy decides where units land on the destination.
type MirrorStrategy string

const (
	StrategyPreserve  MirrorStrategy = "preserve"
	StrategySingleOrg MirrorStrategy = "single-org"
	StrategyFlatUser  MirrorStrategy = "flat-user"
	StrategyMixed     MirrorStrategy = "mixed"
)

// ParseMirrorStrategy validates a strategy string. The empty string means preserve.
func ParseMirrorStrategy(s string) (MirrorStrategy, error) {
	switch MirrorStrategy(s) {
	case "":
		return StrategyPreserve, nil
	case StrategyPreserve, StrategySingleOrg, StrategyFlatUser, StrategyMixed:
		return MirrorStrategy(s), nil
	}
	return "", fmt.Errorf("unknown mirror strategy %q", s)
}

// StarredMode governs where starred units are placed.
type StarredMode string

const (
	StarredDedicatedOrg  StarredMode = "dedicated-org"
	StarredPreserveOwner StarredMode = "preserve-owner"
)

// DefaultStarredOrg is used when starred units go to a dedicated org that is not configured.
const DefaultStarredOrg = "starred"

// Visibility of created destination repositories and organizations.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityLimited Visibility = "limited"
)

// OrphanAction is the disposition applied to units no longer present upstream.
type OrphanAction string

const (
	OrphanSkip    OrphanAction = "skip"
	OrphanArchive OrphanAction = "archive"
	OrphanDelete  OrphanAction = "delete"
)

// Configuration is one user's mirror configuration.
type Configuration struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	IsActive    bool
	Source      SourceConfig
	Destination DestinationConfig
	Filter      FilterConfig
	Schedule    ScheduleConfig
	Cleanup     CleanupConfig
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCredentials reports whether both platforms have a token configured.
func (c *Configuration) HasCredentials() bool {
	return c.Source.Token != "" && c.Destination.Token != "" && c.Destination.URL != ""
}

// SourceConfig holds source platform settings. Token is sealed until call time.
type SourceConfig struct {
	Username       string      `json:"username"`
	Token          string      `json:"token"`
	APIURL         string      `json:"apiUrl,omitempty"`
	StarredOrg     string      `json:"starredReposOrg,omitempty"`
	StarredMode    StarredMode `json:"starredReposMode,omitempty"`
	MirrorIssues   bool        `json:"mirrorIssues"`
	MirrorReleases bool        `json:"mirrorReleases"`
	MirrorWiki     bool        `json:"mirrorWiki"`
	ReleaseLimit   int         `json:"releaseLimit,omitempty"`
}

// DestinationConfig holds destination platform settings. Token is sealed until call time.
type DestinationConfig struct {
	URL          string         `json:"url"`
	Token        string         `json:"token"`
	DefaultOwner string         `json:"defaultOwner"`
	Organization string         `json:"organization,omitempty"`
	Strategy     MirrorStrategy `json:"mirrorStrategy"`
	Visibility   Visibility     `json:"visibility,omitempty"`
}

// FilterConfig selects which source units are tracked.
type FilterConfig struct {
	IncludePatterns      []string `json:"include,omitempty"`
	ExcludePatterns      []string `json:"exclude,omitempty"`
	SkipForks            bool     `json:"skipForks"`
	SkipArchived         bool     `json:"skipArchived"`
	IncludePrivate       bool     `json:"privateRepositories"`
	MirrorStarred        bool     `json:"mirrorStarred"`
	IncludeOrganizations []string `json:"organizations,omitempty"`
}

// ScheduleConfig controls when and how the scheduler runs a configuration.
type ScheduleConfig struct {
	Enabled              bool          `json:"enabled"`
	Interval             string        `json:"interval"`
	LastRun              *time.Time    `json:"lastRun,omitempty"`
	NextRun              *time.Time    `json:"nextRun,omitempty"`
	BatchSize            int           `json:"batchSize,omitempty"`
	PauseBetweenBatches  time.Duration `json:"pauseBetweenBatches,omitempty"`
	Concurrency          int           `json:"concurrent,omitempty"`
	RetryAttempts        int           `json:"retryAttempts,omitempty"`
	RetryDelay           time.Duration `json:"retryDelay,omitempty"`
	AutoImport           bool          `json:"autoImport"`
	AutoMirror           bool          `json:"autoMirror"`
	OnlyMirrorUpdated    bool          `json:"onlyMirrorUpdated"`
	SkipRecentlyMirrored bool          `json:"skipRecentlyMirrored"`
	RecentThreshold      time.Duration `json:"recentThreshold,omitempty"`
}

// CleanupConfig controls orphan handling.
type CleanupConfig struct {
	Enabled        bool         `json:"enabled"`
	OrphanAction   OrphanAction `json:"orphanedRepoAction,omitempty"`
	DryRun         bool         `json:"dryRun"`
	ProtectedRepos []string     `json:"protectedRepos,omitempty"`
	RetentionDays  int          `json:"retentionDays,omitempty"`
	LastRun        *time.Time   `json:"lastRun,omitempty"`
}

// DecodeSections decodes the JSON sections of a stored configuration and validates enums.
func DecodeSections(source, destination, filter, schedule, cleanup []byte) (SourceConfig, DestinationConfig, FilterConfig, ScheduleConfig, CleanupConfig, error) {
	var (
		src SourceConfig
		dst DestinationConfig
		flt FilterConfig
		sch ScheduleConfig
		cln CleanupConfig
	)
	sections := []struct {
		name string
		raw  []byte
		into any
	}{
		{"source", source, &src},
		{"destination", destination, &dst},
		{"filter", filter, &flt},
		{"schedule", schedule, &sch},
		{"cleanup", cleanup, &cln},
	}
	for _, s := range sections {
		if len(s.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(s.raw, s.into); err != nil {
			return src, dst, flt, sch, cln, fmt.Errorf("decode %s config: %w", s.name, err)
		}
	}

	strategy, err := ParseMirrorStrategy(string(dst.Strategy))
	if err != nil {
		return src, dst, flt, sch, cln, err
	}
	dst.Strategy = strategy

	switch src.StarredMode {
	case "":
		src.StarredMode = StarredDedicatedOrg
	case StarredDedicatedOrg, StarredPreserveOwner:
	default:
		return src, dst, flt, sch, cln, fmt.Errorf("unknown starred repos mode %q", src.StarredMode)
	}

	switch cln.OrphanAction {
	case "":
		cln.OrphanAction = OrphanSkip
	case OrphanSkip, OrphanArchive, OrphanDelete:
	default:
		return src, dst, flt, sch, cln, fmt.Errorf("unknown orphaned repo action %q", cln.OrphanAction)
	}

	return src, dst, flt, sch, cln, nil
}
