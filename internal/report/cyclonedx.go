package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/CZERTAINLY/Sniffer/internal/bom"
	"github.com/CZERTAINLY/Sniffer/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

const (
	propStrategy = "sniffer:strategy"
	propModel    = "sniffer:model"
	propLine     = "sniffer:line"
)

var source = &cdx.Source{Name: "Sniffer"}

var severities = map[model.Severity]cdx.Severity{
	model.SeverityHigh:   cdx.SeverityHigh,
	model.SeverityMedium: cdx.SeverityMedium,
	model.SeverityLow:    cdx.SeverityLow,
}

// CycloneDX renders a BOM with a file component per input and a vulnerability per finding.
func CycloneDX(w io.Writer, files []File) error {
	b := bom.NewBuilder()
	for i, f := range files {
		ref := fmt.Sprintf("file-%d", i+1)
		props := []cdx.Property{{Name: propStrategy, Value: f.Strategy}}
		if f.Model != "" {
			props = append(props, cdx.Property{Name: propModel, Value: f.Model})
		}
		b.AppendComponents(cdx.Component{
			BOMRef:     ref,
			Type:       cdx.ComponentTypeFile,
			Name:       f.Name,
			Properties: &props,
		})

		for j, finding := range f.Findings {
			b.AppendVulnerabilities(vulnerability(fmt.Sprintf("%s-finding-%d", ref, j+1), ref, finding))
		}
	}
	if err := b.AsJSON(w); err != nil {
		return fmt.Errorf("encoding CycloneDX: %w", err)
	}
	return nil
}

func vulnerability(bomRef, componentRef string, f model.Finding) cdx.Vulnerability {
	id := f.Rule
	if id == "" {
		id = "remote-finding"
	}
	sev, ok := severities[f.Severity]
	if !ok {
		sev = cdx.SeverityUnknown
	}
	return cdx.Vulnerability{
		BOMRef:         bomRef,
		ID:             id,
		Source:         source,
		Description:    f.Message,
		Recommendation: f.Improvement,
		Ratings: &[]cdx.VulnerabilityRating{
			{
				Source:   source,
				Severity: sev,
				Method:   cdx.ScoringMethodOther,
			},
		},
		Affects: &[]cdx.Affects{{Ref: componentRef}},
		Properties: &[]cdx.Property{
			{Name: propLine, Value: strconv.Itoa(f.Line)},
		},
	}
}
