package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks a diagnostic. The numeric values match the extension API.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

var severityNames = []string{"error", "warning", "information", "hint"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalJSON encodes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the numeric or the named form.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Severity(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("invalid severity %s", string(data))
	}
	for i, v := range severityNames {
		if strings.EqualFold(v, name) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", name)
}

// Position is a zero-based line/character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range spans two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is a single problem reported against a file.
type Diagnostic struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Range    Range    `json:"range"`
	Source   string   `json:"source,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// Commit identifies a commit by object ID.
type Commit struct {
	OID string `json:"oid"`
}

// FileEntry is a file blob at a commit, as resolved for a diagnostic URL.
type FileEntry struct {
	Path       string        `json:"path"`
	Content    string        `json:"content"`
	Repository RepositoryRef `json:"repository"`
	Commit     Commit        `json:"commit"`
}

// DiagnosticInfo is a diagnostic joined with the file it was reported on.
// Diagnostics from the same URL share one Entry.
type DiagnosticInfo struct {
	Diagnostic
	Entry *FileEntry `json:"entry"`
}

// Line returns the 1-based line the diagnostic starts on.
func (d DiagnosticInfo) Line() int {
	return d.Range.Start.Line + 1
}

// Location formats repo, path and line for display.
func (d DiagnosticInfo) Location() string {
	if d.Entry == nil {
		return fmt.Sprintf(":%d", d.Line())
	}
	return fmt.Sprintf("%s/%s:%d", d.Entry.Repository.Name, d.Entry.Path, d.Line())
}
