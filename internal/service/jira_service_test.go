package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/super-pm-ai/superpm-mcp/internal/port/outbound"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

type fakeTracker struct {
	boards      json.RawMessage
	issues      json.RawMessage
	created     json.RawMessage
	err         error
	lastBoardID int
	lastInput   outbound.CreateIssueInput
}

func (f *fakeTracker) ListBoards(context.Context) (json.RawMessage, error) {
	return f.boards, f.err
}

func (f *fakeTracker) ListBoardIssues(_ context.Context, boardID int) (json.RawMessage, error) {
	f.lastBoardID = boardID
	return f.issues, f.err
}

func (f *fakeTracker) CreateIssue(_ context.Context, input outbound.CreateIssueInput) (json.RawMessage, error) {
	f.lastInput = input
	return f.created, f.err
}

func TestJiraListBoards(t *testing.T) {
	tracker := &fakeTracker{boards: json.RawMessage(`[{"id":7,"name":"SUPER board"}]`)}
	svc := NewJiraService(tracker)

	result := svc.listBoards(context.Background(), nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "SUPER board") {
		t.Errorf("text = %q", result.Content[0].Text)
	}
}

func TestJiraListBoardIssues(t *testing.T) {
	tracker := &fakeTracker{issues: json.RawMessage(`{"issues":[{"key":"SUPER-1"}]}`)}
	svc := NewJiraService(tracker)

	result := svc.listBoardIssues(context.Background(), json.RawMessage(`{"boardId":42}`))
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if tracker.lastBoardID != 42 {
		t.Errorf("boardID = %d, want 42", tracker.lastBoardID)
	}
	if !strings.Contains(result.Content[0].Text, "SUPER-1") {
		t.Errorf("text = %q", result.Content[0].Text)
	}
}

func TestJiraListBoardIssuesMissingID(t *testing.T) {
	svc := NewJiraService(&fakeTracker{})
	result := svc.listBoardIssues(context.Background(), json.RawMessage(`{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestJiraCreateIssue(t *testing.T) {
	tracker := &fakeTracker{created: json.RawMessage(`{"id":"10001","key":"SUPER-2"}`)}
	svc := NewJiraService(tracker)

	result := svc.createIssue(context.Background(), json.RawMessage(
		`{"projectId":"10000","summary":"Add login","description":"Users need to log in","issueType":"Story"}`))
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if tracker.lastInput.ProjectID != "10000" || tracker.lastInput.IssueType != "Story" {
		t.Errorf("input = %+v", tracker.lastInput)
	}
	if !strings.Contains(result.Content[0].Text, "SUPER-2") {
		t.Errorf("text = %q", result.Content[0].Text)
	}
}

func TestJiraCreateIssueMissingFields(t *testing.T) {
	svc := NewJiraService(&fakeTracker{})
	result := svc.createIssue(context.Background(), json.RawMessage(`{"projectId":"10000"}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestJiraAPIErrorStaysInBand(t *testing.T) {
	tracker := &fakeTracker{err: errors.New("401 unauthorized")}
	svc := NewJiraService(tracker)

	result := svc.listBoards(context.Background(), nil)
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.HasPrefix(result.Content[0].Text, "Jira API Error:") {
		t.Errorf("text = %q", result.Content[0].Text)
	}
}

func TestJiraIssuePrompt(t *testing.T) {
	svc := NewJiraService(&fakeTracker{})

	result, err := svc.issuePrompt(context.Background(), json.RawMessage(
		`{"issueTitle":"Login page","userStory":"sign in with my email","acceptanceCriteria":"- email and password fields"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(result.Messages))
	}
	text := result.Messages[0].Content.Text
	for _, want := range []string{"sign in with my email", "- email and password fields", `"Login page"`, "**Acceptance Criteria:**"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt text missing %q:\n%s", want, text)
		}
	}
}

func TestJiraIssuePromptMissingArguments(t *testing.T) {
	svc := NewJiraService(&fakeTracker{})
	if _, err := svc.issuePrompt(context.Background(), json.RawMessage(`{"issueTitle":"x"}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestJiraRegisterSurface(t *testing.T) {
	d := testDispatcher(t)
	NewJiraService(&fakeTracker{}).Register(d)

	resp := dispatchJSON(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	var tools mcp.ListToolsResult
	if err := json.Unmarshal(resp.Result, &tools); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_jira_boards", "list_jira_issues", "create_jira_issue"} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}

	resp = dispatchJSON(t, d, `{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`)
	if !strings.Contains(string(resp.Result), "jira_issue_prompt") {
		t.Errorf("prompts/list = %s", resp.Result)
	}
}
