package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
)

func plain(s string) string {
	return format.StripAnsi(s)
}

func testRows() []Row {
	return []Row{
		{Repo: "github.com/o/a", Path: "x.go", Line: 3, Icon: "✗", Text: "unused variable"},
		{Repo: "github.com/o/a", Path: "y.go", Line: 1, Icon: "⚠", Text: "shadowed"},
		{Repo: "github.com/o/b", Path: "x.go", Line: 9, Icon: "✗", Text: "missing return"},
		{Repo: "github.com/o/a", Path: "x.go", Line: 7, Icon: "✗", Text: "unreachable"},
	}
}

func TestRenderStateDispatch(t *testing.T) {
	tests := []struct {
		name  string
		state view.State[Row]
		want  string
	}{
		{"error", view.Failed[Row](errors.New("backend unavailable")), "backend unavailable"},
		{"loading", view.Loading[Row](), "Loading..."},
		{"empty", view.Loaded[Row](nil), constants.EmptyInboxText},
		{"populated", view.Loaded(testRows()), "unused variable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := plain(RenderState(tt.state, RenderOptions{Width: 120, ShowSidebar: true}))
			if !strings.Contains(got, tt.want) {
				t.Errorf("RenderState() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestRenderStateErrorShowsNoItems(t *testing.T) {
	got := plain(RenderState(view.Failed[Row](errors.New("boom")), RenderOptions{Width: 120}))
	if strings.Contains(got, "Loading") || strings.Contains(got, constants.EmptyInboxText) {
		t.Errorf("error render leaked another state: %q", got)
	}
}

func TestRenderPopulatedSidebar(t *testing.T) {
	rows := testRows()

	with := plain(RenderState(view.Loaded(rows), RenderOptions{Width: 120, ShowSidebar: true}))
	if !strings.Contains(with, "github.com/o/a (3)") || !strings.Contains(with, "github.com/o/b (1)") {
		t.Errorf("sidebar counts missing:\n%s", with)
	}

	without := plain(RenderState(view.Loaded(rows), RenderOptions{Width: 120}))
	if strings.Contains(without, "(3)") {
		t.Errorf("sidebar rendered while hidden:\n%s", without)
	}
	for _, r := range rows {
		if !strings.Contains(without, r.Text) {
			t.Errorf("row %q missing:\n%s", r.Text, without)
		}
	}
}

func TestRenderCursorAndScroll(t *testing.T) {
	var rows []Row
	for i := range 20 {
		rows = append(rows, Row{Repo: "r", Path: "f.go", Line: i + 1, Text: "row" + itoa(i)})
	}

	got := plain(RenderState(view.Loaded(rows), RenderOptions{Width: 100, Height: 5, Cursor: 15}))
	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Fatalf("rendered %d lines, want 5", len(lines))
	}
	var selected string
	for _, l := range lines {
		if strings.HasPrefix(l, "> ") {
			selected = l
		}
	}
	if !strings.Contains(selected, "row15") {
		t.Errorf("cursor line = %q, want row15", selected)
	}
}

func TestGroupRows(t *testing.T) {
	want := []RepoGroup{
		{Repo: "github.com/o/a", Count: 3, Files: []FileCount{{Path: "x.go", Count: 2}, {Path: "y.go", Count: 1}}},
		{Repo: "github.com/o/b", Count: 1, Files: []FileCount{{Path: "x.go", Count: 1}}},
	}
	if diff := cmp.Diff(want, GroupRows(testRows())); diff != "" {
		t.Errorf("GroupRows mismatch (-want +got):\n%s", diff)
	}
	if GroupRows(nil) != nil {
		t.Error("GroupRows(nil) should be nil")
	}
}

func TestCalculateScrollWindow(t *testing.T) {
	tests := []struct {
		cursor, total, height int
		start, end            int
	}{
		{0, 3, 10, 0, 3},
		{0, 20, 5, 0, 5},
		{10, 20, 5, 8, 13},
		{19, 20, 5, 15, 20},
	}
	for _, tt := range tests {
		start, end := calculateScrollWindow(tt.cursor, tt.total, tt.height)
		if start != tt.start || end != tt.end {
			t.Errorf("calculateScrollWindow(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.cursor, tt.total, tt.height, start, end, tt.start, tt.end)
		}
	}
}

func TestDiagnosticRow(t *testing.T) {
	entry := &model.FileEntry{Path: "a.go", Repository: model.RepositoryRef{Name: "github.com/o/r"}}
	d := model.DiagnosticInfo{
		Diagnostic: model.Diagnostic{
			Message:  "unused",
			Severity: model.SeverityWarning,
			Range:    model.Range{Start: model.Position{Line: 4}},
		},
		Entry: entry,
	}
	got := DiagnosticRow(d)
	want := Row{Repo: "github.com/o/r", Path: "a.go", Line: 5, Icon: format.WarningIcon, Level: LevelWarning, Text: "unused"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiagnosticRow mismatch (-want +got):\n%s", diff)
	}
	if got.Location() != "a.go:5" {
		t.Errorf("Location() = %q", got.Location())
	}
}

func TestTargetRow(t *testing.T) {
	item := model.TargetRepo{
		ID:         "a",
		Repository: model.RepositoryRef{Name: "r1"},
		Path:       "x.go",
		Branch:     "main",
		Selection:  &model.Selection{StartLine: 9},
	}
	got := TargetRow(item, false)
	if got.Line != 10 || got.Text != "open @ main" || got.Level != LevelInfo {
		t.Errorf("TargetRow(open) = %+v", got)
	}

	item.IsIgnored = true
	if got := TargetRow(item, false); got.Level != LevelMuted || !strings.HasPrefix(got.Text, "ignored") {
		t.Errorf("TargetRow(ignored) = %+v", got)
	}
	if got := TargetRow(item, true); !strings.HasPrefix(got.Text, "handled") {
		t.Errorf("TargetRow(handled) = %+v", got)
	}
}
