package output

import (
	"encoding/json"
	"io"

	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/service"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// InboxItem is a target item annotated with its display status.
type InboxItem struct {
	model.TargetRepo
	Status string `json:"status"`
}

// InboxOutput wraps the filtered items with thread metadata.
type InboxOutput struct {
	Thread *model.Thread `json:"thread"`
	Query  string        `json:"query,omitempty"`
	Total  int           `json:"total"`
	Items  []InboxItem   `json:"items"`
}

// DiagnosticsOutput wraps joined diagnostics.
type DiagnosticsOutput struct {
	Count int                    `json:"count"`
	Items []model.DiagnosticInfo `json:"items"`
}

func (f *JSONFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

// FormatInbox outputs the filtered inbox as JSON
func (f *JSONFormatter) FormatInbox(result *service.InboxResult, w io.Writer) error {
	handled := result.Settings.HandledIDs()
	items := make([]InboxItem, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, InboxItem{TargetRepo: item, Status: itemStatus(item, handled)})
	}
	return f.encoder(w).Encode(InboxOutput{
		Thread: result.Thread,
		Query:  result.Query.String(),
		Total:  result.Total,
		Items:  items,
	})
}

// FormatDiagnostics outputs joined diagnostics as JSON
func (f *JSONFormatter) FormatDiagnostics(items []model.DiagnosticInfo, w io.Writer) error {
	if items == nil {
		items = []model.DiagnosticInfo{}
	}
	return f.encoder(w).Encode(DiagnosticsOutput{Count: len(items), Items: items})
}
