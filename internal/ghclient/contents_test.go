package ghclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spiffcs/inbox/internal/model"
)

const testSHA = "0123456789abcdef0123456789abcdef01234567"

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func contentsHandler(t *testing.T, wantRef string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ref"); got != wantRef {
			t.Errorf("ref = %q, want %q", got, wantRef)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Limit", "5000")
		enc := base64.StdEncoding.EncodeToString([]byte("package a\n"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","path":"dir/a.go","content":%q}`, enc)
	}
}

func TestCandidateFileAtBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/contents/dir/a.go", contentsHandler(t, "main"))
	mux.HandleFunc("/repos/o/r/commits/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testSHA)
	})
	c := newTestClient(t, mux)

	got, err := c.CandidateFile(context.Background(), "git://github.com/o/r?main#dir/a.go")
	if err != nil {
		t.Fatalf("CandidateFile() error = %v", err)
	}
	want := model.FileEntry{
		Path:       "dir/a.go",
		Content:    "package a\n",
		Repository: model.RepositoryRef{Name: "github.com/o/r"},
		Commit:     model.Commit{OID: testSHA},
	}
	if *got != want {
		t.Errorf("CandidateFile() = %+v, want %+v", *got, want)
	}
	if st := c.RateLimit(); st.Remaining != 4999 {
		t.Errorf("RateLimit().Remaining = %d, want 4999", st.Remaining)
	}
}

func TestCandidateFileAtCommitSkipsResolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/contents/dir/a.go", contentsHandler(t, testSHA))
	mux.HandleFunc("/repos/o/r/commits/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("commit lookup should be skipped for pinned URIs")
	})
	c := newTestClient(t, mux)

	got, err := c.CandidateFile(context.Background(), "git://github.com/o/r?"+testSHA+"#dir/a.go")
	if err != nil {
		t.Fatalf("CandidateFile() error = %v", err)
	}
	if got.Commit.OID != testSHA {
		t.Errorf("OID = %q, want %q", got.Commit.OID, testSHA)
	}
}

func TestCandidateFileErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/contents/missing.go", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/repos/o/r/contents/dir", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"a.go","path":"dir/a.go"}]`)
	})
	c := newTestClient(t, mux)

	for _, uri := range []string{
		"git://github.com/o/r#missing.go",
		"git://github.com/o/r#dir",
		"git://github.com/only-owner#a.go",
	} {
		if _, err := c.CandidateFile(context.Background(), uri); err == nil {
			t.Errorf("CandidateFile(%q) expected error", uri)
		}
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	if _, err := NewClient(context.Background(), ""); err == nil {
		t.Error("expected error without a token")
	}
}
