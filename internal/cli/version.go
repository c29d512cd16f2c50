package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/internal/version"
	"github.com/sqlops-dev/sqlops/pkg/printer"
)

var versionJSON bool

type versionOutput struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Displays the version of sqlctl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := versionOutput{
			Version:   version.Version,
			GitCommit: version.GitCommit,
			BuildDate: version.BuildDate,
		}

		if versionJSON {
			return printer.PrintJSON(cmd.OutOrStdout(), out)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sqlctl version %s\n", out.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", out.GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", out.BuildDate)
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output version information in JSON format")
}
