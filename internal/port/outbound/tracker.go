// Package outbound defines the outbound port interfaces consumed by the
// server core. Adapters (Jira REST) implement these interfaces.
package outbound

import (
	"context"
	"encoding/json"
)

// CreateIssueInput carries the fields for a new tracker issue.
type CreateIssueInput struct {
	ProjectID   string
	Summary     string
	Description string
	IssueType   string
}

// IssueTracker is the outbound port to the issue tracker.
// Results are relayed as raw JSON: the server does not model the tracker's
// domain, it passes responses through verbatim.
type IssueTracker interface {
	// ListBoards returns all boards visible to the configured account.
	ListBoards(ctx context.Context) (json.RawMessage, error)

	// ListBoardIssues returns the issues on a board.
	ListBoardIssues(ctx context.Context, boardID int) (json.RawMessage, error)

	// CreateIssue creates a new issue and returns the tracker's response.
	CreateIssue(ctx context.Context, in CreateIssueInput) (json.RawMessage, error)
}
