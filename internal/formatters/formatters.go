package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"betterats/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry is the registry used by the CLI and the watcher.
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ProcessResult", &ProcessTextFormatter{})
	registry.RegisterFormatter("markdown", "ProcessResult", &ProcessMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ProcessResult, *types.ProcessResult:
		return "ProcessResult"
	default:
		return "any"
	}
}

func asProcessResult(data any) (types.ProcessResult, error) {
	switch v := data.(type) {
	case types.ProcessResult:
		return v, nil
	case *types.ProcessResult:
		if v == nil {
			return types.ProcessResult{}, fmt.Errorf("nil ProcessResult")
		}
		return *v, nil
	default:
		return types.ProcessResult{}, fmt.Errorf("expected ProcessResult, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ProcessTextFormatter renders a ProcessResult as plain text.
type ProcessTextFormatter struct{}

func (ptf *ProcessTextFormatter) Format(data any) (string, error) {
	result, err := asProcessResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	c := result.Candidate

	output.WriteString("=== CANDIDATE ===\n")
	fmt.Fprintf(&output, "Name: %s\n", fullName(c))
	fmt.Fprintf(&output, "Email: %s\n", orUnknown(c.Email))
	fmt.Fprintf(&output, "Phone: %s\n", orUnknown(c.Phone))
	fmt.Fprintf(&output, "LinkedIn: %s\n\n", orUnknown(c.LinkedIn))

	output.WriteString("=== EXPERIENCE ===\n")
	if len(c.Experiences) == 0 {
		output.WriteString("No experience found.\n")
	}
	for i, exp := range c.Experiences {
		fmt.Fprintf(&output, "%d. %s at %s (%s - %s)\n", i+1,
			orUnknown(exp.Title), orUnknown(exp.Company),
			orUnknown(exp.StartDate), orUnknown(exp.EndDate))
		if exp.Description != nil && *exp.Description != "" {
			fmt.Fprintf(&output, "   %s\n", *exp.Description)
		}
	}
	output.WriteString("\n")

	output.WriteString("=== REQUIREMENTS ===\n")
	met := 0
	for _, a := range result.Assessments {
		mark := "MISSING"
		if a.PresentInDocuments {
			mark = "MET"
			met++
		}
		fmt.Fprintf(&output, "[%s] %s\n", mark, a.Requirement)
		if a.Inquiry != nil {
			fmt.Fprintf(&output, "   Ask: %s\n", *a.Inquiry)
		}
	}
	fmt.Fprintf(&output, "\n%d of %d requirements found in documents\n", met, len(result.Assessments))

	return output.String(), nil
}

func (ptf *ProcessTextFormatter) SupportedType() string {
	return "ProcessResult"
}

// ProcessMarkdownFormatter renders a ProcessResult as markdown.
type ProcessMarkdownFormatter struct{}

func (pmf *ProcessMarkdownFormatter) Format(data any) (string, error) {
	result, err := asProcessResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	c := result.Candidate

	fmt.Fprintf(&output, "# %s\n\n", fullName(c))
	output.WriteString("## Contact\n\n")
	fmt.Fprintf(&output, "- **Email:** %s\n", orUnknown(c.Email))
	fmt.Fprintf(&output, "- **Phone:** %s\n", orUnknown(c.Phone))
	fmt.Fprintf(&output, "- **LinkedIn:** %s\n\n", orUnknown(c.LinkedIn))

	output.WriteString("## Experience\n\n")
	if len(c.Experiences) == 0 {
		output.WriteString("_No experience found._\n")
	}
	for _, exp := range c.Experiences {
		fmt.Fprintf(&output, "### %s, %s\n\n", orUnknown(exp.Title), orUnknown(exp.Company))
		fmt.Fprintf(&output, "*%s - %s*\n\n", orUnknown(exp.StartDate), orUnknown(exp.EndDate))
		if exp.Description != nil && *exp.Description != "" {
			output.WriteString(*exp.Description)
			output.WriteString("\n\n")
		}
	}

	output.WriteString("## Requirements\n\n")
	output.WriteString("| Requirement | Found | Follow-up question |\n")
	output.WriteString("|---|---|---|\n")
	for _, a := range result.Assessments {
		found := "No"
		if a.PresentInDocuments {
			found = "Yes"
		}
		inquiry := ""
		if a.Inquiry != nil {
			inquiry = *a.Inquiry
		}
		fmt.Fprintf(&output, "| %s | %s | %s |\n", escapeCell(a.Requirement), found, escapeCell(inquiry))
	}

	return output.String(), nil
}

func (pmf *ProcessMarkdownFormatter) SupportedType() string {
	return "ProcessResult"
}

func fullName(c types.CandidateProfile) string {
	var parts []string
	if c.FirstName != nil && *c.FirstName != "" {
		parts = append(parts, *c.FirstName)
	}
	if c.LastName != nil && *c.LastName != "" {
		parts = append(parts, *c.LastName)
	}
	if len(parts) == 0 {
		return "Unknown candidate"
	}
	return strings.Join(parts, " ")
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "n/a"
	}
	return *s
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
