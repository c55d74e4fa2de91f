package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/olekukonko/tablewriter"
)

const noFindings = "No vulnerabilities found"

// Text renders one table row per finding followed by a per severity summary.
func Text(w io.Writer, files []File) error {
	var all []model.Finding
	for _, f := range files {
		all = append(all, f.Findings...)
	}
	if len(all) == 0 {
		_, err := fmt.Fprintln(w, noFindings)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"File", "Line", "Severity", "Rule", "Message"})
	for _, f := range files {
		for _, finding := range f.Findings {
			err := table.Append([]string{
				f.Name,
				strconv.Itoa(finding.Line),
				string(finding.Severity),
				finding.Rule,
				finding.Message,
			})
			if err != nil {
				return fmt.Errorf("rendering table: %w", err)
			}
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	counts := model.CountBySeverity(all)
	_, err := fmt.Fprintf(w, "%d findings: %d high, %d medium, %d low\n",
		len(all),
		counts[model.SeverityHigh],
		counts[model.SeverityMedium],
		counts[model.SeverityLow],
	)
	return err
}
