package format

import "github.com/spiffcs/inbox/internal/model"

// Severity icons for display. Renderers apply their own styling.
const (
	ErrorIcon       = "✗"
	WarningIcon     = "⚠"
	InformationIcon = "ℹ"
	HintIcon        = "·"

	// IconWidth is the display width reserved for the icon column.
	IconWidth = 2
)

// SeverityIcon returns the icon for a diagnostic severity.
func SeverityIcon(s model.Severity) string {
	switch s {
	case model.SeverityError:
		return ErrorIcon
	case model.SeverityWarning:
		return WarningIcon
	case model.SeverityInformation:
		return InformationIcon
	default:
		return HintIcon
	}
}

// TargetStatus is the display status of an inbox item.
func TargetStatus(ignored, handled bool) string {
	switch {
	case handled:
		return "handled"
	case ignored:
		return "ignored"
	default:
		return "open"
	}
}
