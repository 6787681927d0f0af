package server

import (
	"encoding/json"
	"fmt"

	"github.com/artemis/ai-modernizer/internal/agents"
)

// ReportRenderer turns a finished MigrationState into report bytes for a
// requested format. Concrete HTML/Markdown renderers are an
// out-of-scope collaborator; JSONReportRenderer is the one format the
// server implements directly, sufficient to make the report endpoints
// testable end to end.
type ReportRenderer interface {
	Render(state agents.MigrationState, format string) ([]byte, error)
}

// JSONReportRenderer pretty-prints the MigrationState as its report for
// format "json" (or an empty format); any other format is an error.
type JSONReportRenderer struct{}

func (JSONReportRenderer) Render(state agents.MigrationState, format string) ([]byte, error) {
	switch format {
	case "", "json":
		return json.MarshalIndent(state, "", "  ")
	default:
		return nil, fmt.Errorf("report format %q is not available", format)
	}
}
