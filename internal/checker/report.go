package checker

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteReport renders results as a table to cfg.OutputFile, or to
// stdout when cfg.OutputFile is empty.
func WriteReport(results []ProbeResult, cfg Config) error {
	if cfg.OutputFile == "" {
		return writeReport(os.Stdout, results)
	}
	f, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("checker: open output file: %w", err)
	}
	defer f.Close()
	return writeReport(f, results)
}

func writeReport(w io.Writer, results []ProbeResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Upstream", "Kind", "Outcome", "Elapsed", "Detail"})

	for _, r := range results {
		t.AppendRow(table.Row{
			r.Upstream.Endpoint.String(),
			r.Upstream.Kind.String(),
			r.Outcome.Kind.String(),
			formatElapsed(r.Outcome),
			formatDetail(r.Outcome),
		})
	}

	t.Render()
	return nil
}

func formatElapsed(o Outcome) string {
	if o.Kind != OutcomeOK {
		return "-"
	}
	return o.Elapsed.String()
}

func formatDetail(o Outcome) string {
	switch {
	case o.Kind == OutcomeProtocolError:
		return o.ProtocolErrKind
	case o.Err != nil:
		return o.Err.Error()
	default:
		return "-"
	}
}
