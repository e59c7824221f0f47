package findings

import (
	"fmt"
	"io"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

const (
	toolName = "bug-intake"
	toolURI  = "https://github.com/example/bug-intake"
)

// ToSARIF converts findings into a SARIF 2.1.0 report with one rule per
// category.
func ToSARIF(items []Finding) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, item := range items {
		rule := run.AddRule(ruleID(item.ErrorMessage)).
			WithDescription(descriptionFor(item))

		region := sarif.NewRegion()
		if item.LineNumber > 0 {
			region = region.WithStartLine(item.LineNumber)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(artifactURI(item))).
				WithRegion(region),
		)

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(item.ErrorMessage)).
			WithLevel("warning").
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	report.AddRun(run)
	return report, nil
}

func WriteSARIF(w io.Writer, items []Finding) error {
	report, err := ToSARIF(items)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}

func ruleID(category string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "-")
}

func descriptionFor(item Finding) string {
	if item.Suggestion != nil {
		return *item.Suggestion
	}
	return item.ErrorMessage
}

func artifactURI(item Finding) string {
	if item.FilePath != "" {
		return item.FilePath
	}
	return item.FileName
}
