package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const (
	typeLabelPrefix  = "type::"
	defaultIssueType = "issue"
)

type GitLabConfig struct {
	URL   string
	Token string
	// Projects maps ticket key prefixes to project paths: "ABC" -> "group/abc".
	Projects map[string]string
}

// gitLabTracker reads ticket types from GitLab scoped labels ("type::bug").
// Ticket ABC-123 is issue #123 of the project configured for key ABC.
type gitLabTracker struct {
	client   *gitlab.Client
	projects map[string]string
}

func NewGitLabTracker(cfg GitLabConfig) (Tracker, error) {
	client, err := newGitLabClient(cfg.URL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitLabTracker{client: client, projects: cfg.Projects}, nil
}

func newGitLabClient(baseURL, token string) (*gitlab.Client, error) {
	if baseURL == "" {
		return gitlab.NewClient(token)
	}
	apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
	return gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
}

func (t *gitLabTracker) IssueType(ctx context.Context, issueID string) (string, error) {
	project, iid, err := t.locate(issueID)
	if err != nil {
		return "", err
	}

	issue, resp, err := t.client.Issues.GetIssue(project, iid, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("gitlab %s: %w", issueID, ErrNotFound)
		}
		return "", fmt.Errorf("fetching gitlab issue %s: %w", issueID, err)
	}

	return typeFromLabels(issue.Labels), nil
}

func (t *gitLabTracker) locate(issueID string) (string, int64, error) {
	key, num, ok := strings.Cut(issueID, "-")
	if !ok {
		return "", 0, fmt.Errorf("malformed ticket id %q", issueID)
	}
	project, ok := t.projects[key]
	if !ok {
		return "", 0, fmt.Errorf("no gitlab project for key %s: %w", key, ErrNotFound)
	}
	iid, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed ticket id %q: %w", issueID, err)
	}
	return project, iid, nil
}

func typeFromLabels(labels []string) string {
	for _, l := range labels {
		if name, ok := strings.CutPrefix(l, typeLabelPrefix); ok && name != "" {
			return name
		}
	}
	return defaultIssueType
}
