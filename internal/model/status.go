// internal/model/status.go
package model

// RepoStatus is the state of a unit (and of organizations and job records).
type RepoStatus string

const (
	StatusImported  RepoStatus = "imported"
	StatusPending   RepoStatus = "pending"
	StatusMirroring RepoStatus = "mirroring"
	StatusMirrored  RepoStatus = "mirrored"
	StatusSyncing   RepoStatus = "syncing"
	StatusSynced    RepoStatus = "synced"
	StatusFailed    RepoStatus = "failed"
	StatusSkipped   RepoStatus = "skipped"
	StatusIgnored   RepoStatus = "ignored"
	StatusArchived  RepoStatus = "archived"
)

var legalTransitions = map[RepoStatus][]RepoStatus{
	StatusImported:  {StatusMirroring, StatusMirrored, StatusFailed, StatusSkipped, StatusIgnored, StatusArchived},
	StatusPending:   {StatusMirroring, StatusMirrored, StatusSyncing, StatusFailed, StatusSkipped, StatusIgnored, StatusArchived},
	StatusMirroring: {StatusMirrored, StatusFailed},
	StatusMirrored:  {StatusMirroring, StatusMirrored, StatusSyncing, StatusFailed, StatusSkipped, StatusIgnored, StatusArchived},
	StatusSyncing:   {StatusSynced, StatusFailed},
	StatusSynced:    {StatusMirroring, StatusMirrored, StatusSyncing, StatusFailed, StatusSkipped, StatusIgnored, StatusArchived},
	StatusFailed:    {StatusMirroring, StatusMirrored, StatusSyncing, StatusFailed, StatusSkipped, StatusIgnored, StatusArchived},
	StatusSkipped:   {StatusImported},
	StatusIgnored:   {StatusImported},
	StatusArchived:  {StatusImported},
}

// CanTransition reports whether a unit may move from one status to another.
func CanTransition(from, to RepoStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends an operation.
func (s RepoStatus) IsTerminal() bool {
	switch s {
	case StatusMirrored, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// MirrorCandidateStatuses are auto-selected for a first mirror.
var MirrorCandidateStatuses = []RepoStatus{StatusImported, StatusPending, StatusFailed}

// SyncCandidateStatuses are auto-selected for a re-sync.
var SyncCandidateStatuses = []RepoStatus{StatusMirrored, StatusSynced, StatusFailed, StatusPending}

// RepairCandidateStatuses are re-checked by status repair.
var RepairCandidateStatuses = []RepoStatus{StatusMirroring, StatusSyncing, StatusFailed}
