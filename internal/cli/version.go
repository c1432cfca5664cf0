package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build information, overridden with -ldflags at release time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version information for appcat",
		Run:   runVersion,
	}
}

func runVersion(*cobra.Command, []string) {
	_, _ = fmt.Fprintf(Stdout, "appcat version %s\n", Version)
	_, _ = fmt.Fprintf(Stdout, "Build date: %s\n", BuildDate)
	_, _ = fmt.Fprintf(Stdout, "Git commit: %s\n", GitCommit)
}
