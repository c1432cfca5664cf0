package cli

// Default values for CLI output.
const (
	// MaxSummaryLength is the maximum length of an application summary in listings.
	MaxSummaryLength = 50
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)
