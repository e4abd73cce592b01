// internal/gitea/types.go
package gitea

// Organization is the subset of a Gitea organization the mirror engine reads.
type Organization struct {
	ID         int64  `json:"id"`
	UserName   string `json:"username"`
	Visibility string `json:"visibility"`
}

type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Repository is the subset of a Gitea repository the mirror engine reads.
type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    User   `json:"owner"`
	Mirror   bool   `json:"mirror"`
	Private  bool   `json:"private"`
	Archived bool   `json:"archived"`
}

type Label struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type Issue struct {
	ID     int64 `json:"id"`
	Number int64 `json:"number"`
}

// MigrateOptions creates a pull mirror of a remote repository.
type MigrateOptions struct {
	CloneAddr   string `json:"clone_addr"`
	RepoName    string `json:"repo_name"`
	RepoOwner   string `json:"repo_owner"`
	Mirror      bool   `json:"mirror"`
	Private     bool   `json:"private"`
	Description string `json:"description"`
	Wiki        bool   `json:"wiki"`
	Service     string `json:"service"`
}

type createOrgOption struct {
	UserName   string `json:"username"`
	Visibility string `json:"visibility,omitempty"`
}

type createLabelOption struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// CreateIssueOptions carries an issue recreated from the source.
type CreateIssueOptions struct {
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Labels []int64 `json:"labels,omitempty"`
	Closed bool    `json:"closed"`
}

type createCommentOption struct {
	Body string `json:"body"`
}

type createReleaseOption struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

type editRepoOption struct {
	Archived *bool `json:"archived,omitempty"`
}
