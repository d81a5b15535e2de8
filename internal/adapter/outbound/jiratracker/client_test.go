package jiratracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/super-pm-ai/superpm-mcp/internal/port/outbound"
)

// newFakeJira spins up an httptest server that mimics the Jira REST
// endpoints the adapter touches, asserting basic-auth on every request.
func newFakeJira(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/agile/1.0/board", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"maxResults":50,"startAt":0,"isLast":true,"values":[{"id":1,"name":"SUP board","type":"scrum"}]}`))
	})
	mux.HandleFunc("/rest/agile/1.0/board/1/issue", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":1,"issues":[{"id":"10001","key":"SUP-1"}]}`))
	})
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		if r.Method != http.MethodPost {
			t.Errorf("issue create method = %s, want POST", r.Method)
		}
		var body struct {
			Fields struct {
				Project   struct{ ID string }
				Summary   string
				IssueType struct {
					Name string
				} `json:"issuetype"`
			}
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode create body: %v", err)
		}
		if body.Fields.Summary != "Fix the flux capacitor" {
			t.Errorf("summary = %q", body.Fields.Summary)
		}
		if body.Fields.IssueType.Name != "Task" {
			t.Errorf("default issue type = %q, want Task", body.Fields.IssueType.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"10002","key":"SUP-2","self":"/rest/api/2/issue/10002"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:  srv.URL,
		Username: "bot@acme.example",
		APIToken: "secret-token",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, client
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != "bot@acme.example" || pass != "secret-token" {
		t.Errorf("missing or wrong basic auth: ok=%v user=%q", ok, user)
	}
}

func TestListBoards(t *testing.T) {
	_, client := newFakeJira(t)

	raw, err := client.ListBoards(context.Background())
	if err != nil {
		t.Fatalf("ListBoards failed: %v", err)
	}
	if !strings.Contains(string(raw), "SUP board") {
		t.Errorf("boards payload missing board name: %s", raw)
	}
}

func TestListBoardIssues(t *testing.T) {
	_, client := newFakeJira(t)

	raw, err := client.ListBoardIssues(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListBoardIssues failed: %v", err)
	}
	if !strings.Contains(string(raw), "SUP-1") {
		t.Errorf("issues payload missing issue key: %s", raw)
	}
}

func TestCreateIssueDefaultsType(t *testing.T) {
	_, client := newFakeJira(t)

	raw, err := client.CreateIssue(context.Background(), outbound.CreateIssueInput{
		ProjectID:   "10000",
		Summary:     "Fix the flux capacitor",
		Description: "It stopped fluxing.",
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if !strings.Contains(string(raw), "SUP-2") {
		t.Errorf("create payload missing issue key: %s", raw)
	}
}

func TestListBoardsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["no boards for you"]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Username: "u", APIToken: "t"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := client.ListBoards(context.Background()); err == nil {
		t.Error("expected error from 403 response")
	}
}
