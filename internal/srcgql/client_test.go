package srcgql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/ratelimit"
)

// newTestServer returns a client whose every request is answered with body.
func newTestServer(t *testing.T, body string, check func(*http.Request, request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if check != nil {
			check(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithToken("secret"), WithHTTPClient(srv.Client()))
}

func TestDoSendsHeaders(t *testing.T) {
	c := newTestServer(t, `{"data":{}}`, func(r *http.Request, req request) {
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("Authorization = %q, want %q", got, "token secret")
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected X-Request-Id header")
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if req.Variables["threadID"] != "T1" {
			t.Errorf("threadID variable = %v", req.Variables["threadID"])
		}
	})

	if _, err := c.Do(context.Background(), "query X { a }", map[string]any{"threadID": "T1"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestDoHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Do(context.Background(), "query X { a }", nil)
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("Do() error = %v, want status 500", err)
	}
}

func TestDoRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Do(context.Background(), "query X { a }", nil)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("Do() error = %v, want ErrRateLimited", err)
	}
	if st := c.RateLimit(); st.Limit != 5000 {
		t.Errorf("RateLimit().Limit = %d, want 5000", st.Limit)
	}
}

func TestNewClientDefaultEndpoint(t *testing.T) {
	c := NewClient("")
	if c.Endpoint() == "" {
		t.Fatal("expected default endpoint")
	}
}

const threadResponse = `{"data":{"node":{
	"__typename":"DiscussionThread",
	"id":"T1","idWithoutKind":"1","title":"Fix lint","type":"CHECK",
	"settings":"{\"pullRequests\":[{\"repo\":\"r1\",\"items\":[\"a\"]}]}",
	"targets":{"nodes":[
		{"__typename":"DiscussionThreadTargetRepo","id":"a","repository":{"name":"r1"},"path":"x.go","isIgnored":false,"url":"/r1/-/blob/x.go"},
		{"__typename":"DiscussionThreadTargetOther","id":"z"}
	],"totalCount":2,"pageInfo":{"hasNextPage":false}}
}}}`

func TestThreadInboxItems(t *testing.T) {
	c := newTestServer(t, threadResponse, nil)

	thread, conn, err := c.ThreadInboxItems(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ThreadInboxItems() error = %v", err)
	}
	if thread.Title != "Fix lint" || thread.ID != "T1" {
		t.Errorf("unexpected thread %+v", thread)
	}
	want := []model.TargetItem{
		model.TargetRepo{ID: "a", Repository: model.RepositoryRef{Name: "r1"}, Path: "x.go", URL: "/r1/-/blob/x.go"},
		model.TargetOther{ID: "z", Kind: "DiscussionThreadTargetOther"},
	}
	if diff := cmp.Diff(want, conn.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if conn.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", conn.TotalCount)
	}
}

func TestThreadInboxItemsShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
		shape   bool
	}{
		{
			name:  "null node without errors",
			body:  `{"data":{"node":null}}`,
			shape: true,
		},
		{
			name:    "null node with errors",
			body:    `{"data":{"node":null},"errors":[{"message":"thread not found"}]}`,
			wantMsg: "thread not found",
		},
		{
			name:  "wrong node type",
			body:  `{"data":{"node":{"__typename":"User"}}}`,
			shape: true,
		},
		{
			name:  "missing targets",
			body:  `{"data":{"node":{"__typename":"DiscussionThread","id":"T1"}}}`,
			shape: true,
		},
		{
			name:  "targets without nodes",
			body:  `{"data":{"node":{"__typename":"DiscussionThread","id":"T1","targets":{"totalCount":0}}}}`,
			shape: true,
		},
		{
			name:    "null data with two errors",
			body:    `{"data":null,"errors":[{"message":"a"},{"message":"b"}]}`,
			wantMsg: "2 errors occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.body, nil)
			_, _, err := c.ThreadInboxItems(context.Background(), "T1")
			if err == nil {
				t.Fatal("expected error")
			}
			var agg *AggregateError
			if !errors.As(err, &agg) {
				t.Fatalf("error %T is not an AggregateError", err)
			}
			if len(agg.Errors) == 0 {
				t.Error("AggregateError has no causes")
			}
			if tt.shape && !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("error = %v, want ErrShapeMismatch", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCandidateFile(t *testing.T) {
	body := `{"data":{"repository":{"commit":{"blob":{
		"path":"a.go","content":"package a\n",
		"repository":{"name":"github.com/o/r"},
		"commit":{"oid":"0123456789012345678901234567890123456789"}
	}}}}}`
	c := newTestServer(t, body, func(_ *http.Request, req request) {
		want := map[string]any{"repo": "github.com/o/r", "rev": "main", "path": "a.go"}
		if diff := cmp.Diff(want, req.Variables); diff != "" {
			t.Errorf("variables mismatch (-want +got):\n%s", diff)
		}
	})

	entry, err := c.CandidateFile(context.Background(), "git://github.com/o/r?main#a.go")
	if err != nil {
		t.Fatalf("CandidateFile() error = %v", err)
	}
	if entry.Path != "a.go" || entry.Repository.Name != "github.com/o/r" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestCandidateFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing repository", `{"data":{"repository":null}}`},
		{"missing commit", `{"data":{"repository":{"commit":null}}}`},
		{"missing blob", `{"data":{"repository":{"commit":{"blob":null}}}}`},
		{"partial data with errors", `{"data":{"repository":{"commit":{"blob":{"path":"a.go","content":""}}}},"errors":[{"message":"partial"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.body, nil)
			entry, err := c.CandidateFile(context.Background(), "git://github.com/o/r#a.go")
			if err == nil {
				t.Fatalf("expected error, got entry %+v", entry)
			}
			var agg *AggregateError
			if !errors.As(err, &agg) {
				t.Fatalf("error %T is not an AggregateError", err)
			}
		})
	}
}

func TestCandidateFileInvalidURI(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	if _, err := c.CandidateFile(context.Background(), "https://example.com/x"); err == nil {
		t.Fatal("expected error for non-git URI")
	}
}

func TestViewer(t *testing.T) {
	c := newTestServer(t, `{"data":{"currentUser":{"username":"alice"}}}`, nil)
	got, err := c.Viewer(context.Background())
	if err != nil {
		t.Fatalf("Viewer() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("Viewer() = %q, want alice", got)
	}

	c = newTestServer(t, `{"data":{"currentUser":null}}`, nil)
	if _, err := c.Viewer(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Viewer() error = %v, want ErrNotAuthenticated", err)
	}
}
