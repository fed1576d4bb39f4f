package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"resumeform/internal/types"
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

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "AnalysisResult", &ResultTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalysisResult", &ResultMarkdownFormatter{})

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
	case *types.AnalysisResult, types.AnalysisResult:
		return "AnalysisResult"
	default:
		return "any"
	}
}

func asResult(data any) (*types.AnalysisResult, error) {
	switch r := data.(type) {
	case *types.AnalysisResult:
		if r == nil || r.ATSScore == nil {
			return nil, fmt.Errorf("analysis result is empty")
		}
		return r, nil
	case types.AnalysisResult:
		return asResult(&r)
	default:
		return nil, fmt.Errorf("expected AnalysisResult, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ResultTextFormatter renders the score heading followed by one "label: value" line per category
type ResultTextFormatter struct{}

func (tf *ResultTextFormatter) Format(data any) (string, error) {
	result, err := asResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	fmt.Fprintf(&output, "ATS Score: %s\n", result.DisplayScore())

	entries := result.Entries()
	if len(entries) > 0 {
		output.WriteString("\n")
	}
	for _, entry := range entries {
		fmt.Fprintf(&output, "%s: %s\n", entry.Label(), entry.Value)
	}

	return output.String(), nil
}

func (tf *ResultTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// ResultMarkdownFormatter renders the breakdown as a table
type ResultMarkdownFormatter struct{}

func (mf *ResultMarkdownFormatter) Format(data any) (string, error) {
	result, err := asResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	fmt.Fprintf(&output, "# ATS Score: %s\n", result.DisplayScore())

	entries := result.Entries()
	if len(entries) == 0 {
		return output.String(), nil
	}

	output.WriteString("\n| Category | Value |\n")
	output.WriteString("|----------|-------|\n")
	for _, entry := range entries {
		fmt.Fprintf(&output, "| %s | %s |\n", escapeCell(entry.Label()), escapeCell(entry.Value.String()))
	}

	return output.String(), nil
}

func (mf *ResultMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// GlobalRegistry is the registry used by the CLI
var GlobalRegistry = NewFormatterRegistry()
