package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spiffcs/inbox/internal/candidate"
	"github.com/spiffcs/inbox/internal/diagnostics"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
)

type fakeSource struct {
	thread *model.Thread
	conn   *model.TargetConnection
	err    error
}

func (f fakeSource) ThreadInboxItems(context.Context, string) (*model.Thread, *model.TargetConnection, error) {
	return f.thread, f.conn, f.err
}

func testSource(settings string) fakeSource {
	return fakeSource{
		thread: &model.Thread{ID: "T1", Title: "Fix lint", Settings: settings},
		conn: &model.TargetConnection{
			Nodes: []model.TargetItem{
				model.TargetRepo{ID: "a"},
				model.TargetRepo{ID: "b", IsIgnored: true},
				model.TargetRepo{ID: "c"},
				model.TargetOther{ID: "x", Kind: "Other"},
			},
			TotalCount: 4,
		},
	}
}

func itemIDs(items []model.TargetRepo) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestLoadUsesThreadSettings(t *testing.T) {
	svc := New(testSource(`{"pullRequests":[{"repo":"r1","items":["c"]}]}`))

	res, err := svc.Load(context.Background(), InboxRequest{ThreadID: "T1", Query: "is:open"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, itemIDs(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if res.Total != 4 || !res.Query.Open {
		t.Errorf("unexpected result %+v", res)
	}
	if res.State().Kind() != view.KindPopulated {
		t.Errorf("State() = %v, want populated", res.State().Kind())
	}
}

func TestLoadSettingsOverride(t *testing.T) {
	svc := New(testSource(`not json`))
	override := &model.ThreadSettings{PullRequests: []model.PullRequest{{Repo: "r1", Items: []string{"b"}}}}

	res, err := svc.Load(context.Background(), InboxRequest{ThreadID: "T1", Query: "repo:r1", Settings: override})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"b"}, itemIDs(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		src  fakeSource
		req  InboxRequest
	}{
		{"missing thread id", testSource(""), InboxRequest{}},
		{"fetch error", fakeSource{err: boom}, InboxRequest{ThreadID: "T1"}},
		{"malformed settings", testSource("{"), InboxRequest{ThreadID: "T1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.src).Load(context.Background(), tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEmptyInbox(t *testing.T) {
	svc := New(testSource(""))
	res, err := svc.Load(context.Background(), InboxRequest{ThreadID: "T1", Query: "repo:none"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State().Kind() != view.KindEmpty {
		t.Errorf("State() = %v, want empty", res.State().Kind())
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"pullRequests":[{"repo":"r1","items":["a","b"]}]}`), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile() error = %v", err)
	}
	if len(got.ItemsForRepo("r1")) != 2 {
		t.Errorf("unexpected settings %+v", got)
	}
	if _, err := LoadSettingsFile(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshotDiagnostics(t *testing.T) {
	coll := diagnostics.NewMemoryCollection(diagnostics.Entry{
		URL:         "git://r#a.go",
		Diagnostics: []model.Diagnostic{{Message: "d1"}, {Message: "d2"}},
	})
	cache := candidate.New(candidate.FetcherFunc(func(_ context.Context, uri string) (*model.FileEntry, error) {
		return &model.FileEntry{Path: uri}, nil
	}))

	got := SnapshotDiagnostics(context.Background(), coll, cache)
	if got.Kind() != view.KindPopulated || len(got.Items()) != 2 {
		t.Fatalf("SnapshotDiagnostics() = %v with %d items", got.Kind(), len(got.Items()))
	}
}

func TestSnapshotDiagnosticsCancelled(t *testing.T) {
	coll := diagnostics.NewMemoryCollection(diagnostics.Entry{URL: "git://r#a.go"})
	release := make(chan struct{})
	defer close(release)
	blocked := candidate.New(candidate.FetcherFunc(func(context.Context, string) (*model.FileEntry, error) {
		<-release
		return nil, errors.New("released")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := SnapshotDiagnostics(ctx, coll, blocked)
	if got.Kind() != view.KindError {
		t.Errorf("SnapshotDiagnostics() = %v, want error", got.Kind())
	}
}
