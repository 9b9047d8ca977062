// Package observability provides logging setup and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/phish-simulator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title + ":\n")
	count := min(len(items), maxItemsToShow)
	for _, item := range items[:count] {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}

// PrintScenarioAnalysis outputs a human-readable summary of the scenario analysis.
func (p *Printer) PrintScenarioAnalysis(a *types.ScenarioAnalysis) {
	if a == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scenario: %s\n", a.Scenario))
	sb.WriteString(fmt.Sprintf("Category: %s\n", a.Category))
	sb.WriteString(fmt.Sprintf("Method:   %s\n", a.Method))
	sb.WriteString(fmt.Sprintf("Tone:     %s\n", a.Tone))
	sender := a.Sender.Name
	if a.Sender.Address != "" {
		sender += " <" + a.Sender.Address + ">"
	}
	sb.WriteString(fmt.Sprintf("Sender:   %s\n", sender))
	if a.Brand != "" {
		sb.WriteString(fmt.Sprintf("Brand:    %s\n", a.Brand))
	}
	sb.WriteString("\n")
	writeList(&sb, "Triggers", a.Triggers)
	writeList(&sb, "Red flags", a.RedFlags)

	p.printBox("SCENARIO ANALYSIS", strings.TrimRight(sb.String(), "\n"))
}

// PrintPartStatus outputs the validation outcome and fixes of each artifact part.
func (p *Printer) PrintPartStatus(parts []types.PartStatus) {
	if len(parts) == 0 {
		return
	}

	var sb strings.Builder
	for i, ps := range parts {
		mark := "✓"
		if !ps.Valid {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, ps.Part)
		if ps.Escalated {
			line += " (escalated)"
		}
		sb.WriteString(line + "\n")
		for _, fix := range ps.Fixes {
			sb.WriteString(fmt.Sprintf("    fix: %s\n", fix))
		}
		if i < len(parts)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("ARTIFACT PARTS", strings.TrimRight(sb.String(), "\n"))
}

// PrintBrandContext outputs the styling guidance used for landing pages.
func (p *Printer) PrintBrandContext(bc *types.BrandContext) {
	if bc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Brand:      %s\n", bc.BrandName))
	sb.WriteString(fmt.Sprintf("Industry:   %s\n", bc.Industry))
	if bc.LogoURL != "" {
		sb.WriteString(fmt.Sprintf("Logo:       %s\n", bc.LogoURL))
	}
	if len(bc.Colors) > 0 {
		sb.WriteString(fmt.Sprintf("Colors:     %s\n", strings.Join(bc.Colors, ", ")))
	}
	writeList(&sb, "Patterns", bc.Patterns)

	p.printBox("BRAND CONTEXT", strings.TrimRight(sb.String(), "\n"))
}

// PrintViolations outputs any content violations found.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintViolations(violations *types.Violations) {
	if violations.Empty() {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO VIOLATIONS FOUND")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d violations:\n\n", len(violations.Violations)))

	for i, v := range violations.Violations {
		details := v.Details
		if len(details) > 45 {
			details = details[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s.%s [%s]\n", v.Part, v.Field, v.Rule))
		sb.WriteString(fmt.Sprintf("  %s\n", details))
		if i < len(violations.Violations)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("CONTENT VIOLATIONS", sb.String())
}
