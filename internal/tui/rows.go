package tui

import (
	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/model"
)

// Level picks the color of a row's icon.
type Level int

const (
	LevelInfo Level = iota
	LevelError
	LevelWarning
	LevelMuted
)

// Row is one display line of the inbox list.
type Row struct {
	Repo string
	Path string
	// Line is 1-based; zero hides it.
	Line  int
	Icon  string
	Level Level
	Text  string
}

// Location renders path and line.
func (r Row) Location() string {
	if r.Line > 0 {
		return r.Path + ":" + itoa(r.Line)
	}
	return r.Path
}

// DiagnosticRow converts a joined diagnostic to a row.
func DiagnosticRow(d model.DiagnosticInfo) Row {
	r := Row{
		Line: d.Line(),
		Icon: format.SeverityIcon(d.Severity),
		Text: d.Message,
	}
	if d.Entry != nil {
		r.Repo = d.Entry.Repository.Name
		r.Path = d.Entry.Path
	}
	switch d.Severity {
	case model.SeverityError:
		r.Level = LevelError
	case model.SeverityWarning:
		r.Level = LevelWarning
	case model.SeverityHint:
		r.Level = LevelMuted
	}
	return r
}

// TargetRow converts an inbox item to a row. handled reports whether a
// pull request already lists the item.
func TargetRow(t model.TargetRepo, handled bool) Row {
	r := Row{
		Repo: t.Repository.Name,
		Path: t.Path,
		Icon: "●",
		Text: format.TargetStatus(t.IsIgnored, handled),
	}
	if t.Selection != nil {
		r.Line = t.Selection.StartLine + 1
	}
	if t.IsIgnored || handled {
		r.Icon = "○"
		r.Level = LevelMuted
	}
	if t.Branch != "" {
		r.Text += " @ " + t.Branch
	}
	return r
}

// FileCount is the number of rows for one file.
type FileCount struct {
	Path  string
	Count int
}

// RepoGroup is the number of rows for one repository, split by file.
type RepoGroup struct {
	Repo  string
	Count int
	Files []FileCount
}

// GroupRows counts rows per repository and file in first-seen order.
func GroupRows(rows []Row) []RepoGroup {
	var groups []RepoGroup
	repoIdx := make(map[string]int)
	fileIdx := make(map[[2]string]int)

	for _, r := range rows {
		gi, ok := repoIdx[r.Repo]
		if !ok {
			gi = len(groups)
			repoIdx[r.Repo] = gi
			groups = append(groups, RepoGroup{Repo: r.Repo})
		}
		g := &groups[gi]
		g.Count++

		key := [2]string{r.Repo, r.Path}
		fi, ok := fileIdx[key]
		if !ok {
			fi = len(g.Files)
			fileIdx[key] = fi
			g.Files = append(g.Files, FileCount{Path: r.Path})
		}
		g.Files[fi].Count++
	}
	return groups
}
