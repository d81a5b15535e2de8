package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/super-pm-ai/superpm-mcp/internal/port/outbound"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

// jiraIssuePromptTemplate is the description-drafting prompt rendered by
// jira_issue_prompt.
const jiraIssuePromptTemplate = "As a user, I want to %s so that I can achieve a certain goal.\n\n" +
	"**Acceptance Criteria:**\n%s\n\n" +
	"Please write a great Jira issue description based on the title \"%s\" and the information above."

// JiraService exposes the issue tracker as tools plus the issue-drafting
// prompt. Tracker payloads are relayed verbatim; the service never
// reshapes tracker JSON.
type JiraService struct {
	tracker outbound.IssueTracker
}

// NewJiraService creates a service backed by tracker.
func NewJiraService(tracker outbound.IssueTracker) *JiraService {
	return &JiraService{tracker: tracker}
}

// Register adds the Jira tools and prompt to the dispatcher. Callers skip
// registration entirely when no tracker credentials are configured, so an
// unconfigured server simply does not advertise these tools.
func (j *JiraService) Register(d *DispatchService) {
	d.RegisterTool(mcp.Tool{
		Name:        "list_jira_boards",
		Description: "Lists all Jira boards visible to the configured account.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, j.listBoards)

	d.RegisterTool(mcp.Tool{
		Name:        "list_jira_issues",
		Description: "Lists the issues on a Jira board.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"boardId": {
					"type": "number",
					"description": "Numeric id of the board to list."
				}
			},
			"required": ["boardId"]
		}`),
	}, j.listBoardIssues)

	d.RegisterTool(mcp.Tool{
		Name:        "create_jira_issue",
		Description: "Creates a new Jira issue in a project.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"projectId": {
					"type": "string",
					"description": "Id of the project to create the issue in."
				},
				"summary": {
					"type": "string",
					"description": "Issue summary line."
				},
				"description": {
					"type": "string",
					"description": "Issue description body."
				},
				"issueType": {
					"type": "string",
					"description": "Issue type name. Defaults to Task."
				}
			},
			"required": ["projectId", "summary", "description"]
		}`),
	}, j.createIssue)

	d.RegisterPrompt(mcp.Prompt{
		Name:        "jira_issue_prompt",
		Description: "Drafts a Jira issue description from a title, user story, and acceptance criteria.",
		Arguments: []mcp.PromptArgument{
			{Name: "issueTitle", Description: "Title of the issue.", Required: true},
			{Name: "userStory", Description: "What the user wants to accomplish.", Required: true},
			{Name: "acceptanceCriteria", Description: "Conditions that make the issue done.", Required: true},
		},
	}, j.issuePrompt)
}

func (j *JiraService) listBoards(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	raw, err := j.tracker.ListBoards(ctx)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Jira API Error: %v", err))
	}
	return mcp.NewTextResult(string(raw))
}

type listBoardIssuesArgs struct {
	BoardID int `json:"boardId"`
}

func (j *JiraService) listBoardIssues(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	var params listBoardIssuesArgs
	if err := json.Unmarshal(args, &params); err != nil || params.BoardID == 0 {
		return mcp.NewErrorResult("Jira API Error: boardId is required")
	}

	raw, err := j.tracker.ListBoardIssues(ctx, params.BoardID)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Jira API Error: %v", err))
	}
	return mcp.NewTextResult(string(raw))
}

type createIssueArgs struct {
	ProjectID   string `json:"projectId"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   string `json:"issueType"`
}

func (j *JiraService) createIssue(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	var params createIssueArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Jira API Error: invalid arguments: %v", err))
	}
	if params.ProjectID == "" || params.Summary == "" || params.Description == "" {
		return mcp.NewErrorResult("Jira API Error: projectId, summary and description are required")
	}

	raw, err := j.tracker.CreateIssue(ctx, outbound.CreateIssueInput{
		ProjectID:   params.ProjectID,
		Summary:     params.Summary,
		Description: params.Description,
		IssueType:   params.IssueType,
	})
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Jira API Error: %v", err))
	}
	return mcp.NewTextResult(string(raw))
}

type issuePromptArgs struct {
	IssueTitle         string `json:"issueTitle"`
	UserStory          string `json:"userStory"`
	AcceptanceCriteria string `json:"acceptanceCriteria"`
}

func (j *JiraService) issuePrompt(ctx context.Context, args json.RawMessage) (*mcp.GetPromptResult, error) {
	var params issuePromptArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.IssueTitle == "" || params.UserStory == "" || params.AcceptanceCriteria == "" {
		return nil, fmt.Errorf("issueTitle, userStory and acceptanceCriteria are required")
	}

	text := fmt.Sprintf(jiraIssuePromptTemplate, params.UserStory, params.AcceptanceCriteria, params.IssueTitle)
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Issue description draft for %q", params.IssueTitle),
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent{Type: "text", Text: text}},
		},
	}, nil
}
