package tracker

import (
	"context"
	"fmt"
	"net/http"

	jira "github.com/andygrunwald/go-jira"
)

type JiraConfig struct {
	URL      string
	Username string
	Password string
	// Transport is the base round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

type jiraTracker struct {
	client *jira.Client
}

func NewJiraTracker(cfg JiraConfig) (Tracker, error) {
	auth := jira.BasicAuthTransport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	}
	client, err := jira.NewClient(auth.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}
	return &jiraTracker{client: client}, nil
}

func (t *jiraTracker) IssueType(ctx context.Context, issueID string) (string, error) {
	issue, resp, err := t.client.Issue.GetWithContext(ctx, issueID, &jira.GetQueryOptions{Fields: "issuetype"})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("jira %s: %w", issueID, ErrNotFound)
		}
		return "", fmt.Errorf("fetching jira issue %s: %w", issueID, err)
	}
	if issue.Fields == nil {
		return "", fmt.Errorf("jira %s: response has no fields", issueID)
	}
	return issue.Fields.Type.Name, nil
}
