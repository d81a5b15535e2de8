// Package jiratracker provides the Jira REST implementation of the
// IssueTracker outbound port.
package jiratracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	jira "github.com/andygrunwald/go-jira"

	"github.com/super-pm-ai/superpm-mcp/internal/port/outbound"
)

// Config holds the Jira connection settings.
type Config struct {
	// BaseURL is the Jira instance URL (e.g., "https://acme.atlassian.net").
	BaseURL string
	// Username is the account email used for basic auth.
	Username string
	// APIToken is the API token paired with Username.
	APIToken string
}

// Client implements outbound.IssueTracker against the Jira REST API.
// Responses are relayed as raw JSON; the tracker's domain model is not
// reimplemented here.
type Client struct {
	jira *jira.Client
}

// New creates a Jira client with basic-auth transport.
func New(cfg Config) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	jc, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}
	return &Client{jira: jc}, nil
}

// ListBoards returns all boards visible to the configured account.
func (c *Client) ListBoards(ctx context.Context) (json.RawMessage, error) {
	boards, _, err := c.jira.Board.GetAllBoardsWithContext(ctx, &jira.BoardListOptions{})
	if err != nil {
		return nil, fmt.Errorf("jira: list boards: %w", err)
	}
	raw, err := json.Marshal(boards)
	if err != nil {
		return nil, fmt.Errorf("jira: encode boards: %w", err)
	}
	return raw, nil
}

// ListBoardIssues returns the issues on a board via the agile API
// (rest/agile/1.0/board/{id}/issue). go-jira has no typed wrapper for this
// endpoint, so the request is issued through its generic request machinery.
func (c *Client) ListBoardIssues(ctx context.Context, boardID int) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("rest/agile/1.0/board/%d/issue", boardID)
	req, err := c.jira.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("jira: build board issues request: %w", err)
	}

	var raw json.RawMessage
	if _, err := c.jira.Do(req, &raw); err != nil {
		return nil, fmt.Errorf("jira: list issues for board %d: %w", boardID, err)
	}
	return raw, nil
}

// CreateIssue creates a new issue and returns the tracker's response.
func (c *Client) CreateIssue(ctx context.Context, in outbound.CreateIssueInput) (json.RawMessage, error) {
	issueType := in.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{ID: in.ProjectID},
			Summary:     in.Summary,
			Description: in.Description,
			Type:        jira.IssueType{Name: issueType},
		},
	}

	created, _, err := c.jira.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("jira: create issue: %w", err)
	}
	raw, err := json.Marshal(created)
	if err != nil {
		return nil, fmt.Errorf("jira: encode created issue: %w", err)
	}
	return raw, nil
}

// Compile-time interface verification.
var _ outbound.IssueTracker = (*Client)(nil)
