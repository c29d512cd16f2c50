package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sqlops-dev/sqlops/pkg/printer"
)

var instanceListOutput string

var InstanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Registered-instance inventory",
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered instances",
	Long:  `Shows the registered-instance inventory. Registered names can be used wherever a command accepts an instance.`,
	RunE:  runInstanceList,
}

func init() {
	instanceListCmd.Flags().StringVarP(&instanceListOutput, "output", "o", "table", "Output format (table, json)")
	InstanceCmd.AddCommand(instanceListCmd)
}

func runInstanceList(cmd *cobra.Command, args []string) error {
	_, cfg, err := connectOptions()
	if err != nil {
		return err
	}
	inv, err := loadInventory(cfg)
	if err != nil {
		return err
	}

	if instanceListOutput == "json" {
		return printer.PrintJSON(cmd.OutOrStdout(), inv.Instances)
	}

	if len(inv.Instances) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No registered instances")
		return nil
	}

	t := printer.NewTablePrinter(cmd.OutOrStdout())
	t.SetHeaders("Name", "Host", "Instance", "Port", "User")
	for _, name := range inv.Names() {
		entry := inv.Instances[name]
		port := ""
		if entry.Port > 0 {
			port = strconv.Itoa(entry.Port)
		}
		t.AddRow(name, entry.Host, entry.Instance, port, entry.User)
	}
	return t.Render()
}
