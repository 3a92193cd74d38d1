package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/bundloor/pkg/registry"
)

var buildersCmd = &cobra.Command{
	Use:   "builders",
	Short: "Print the builder catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(reg.All())
		}

		fmt.Fprintln(cmd.OutOrStdout(), catalogTable(reg.All()))

		return nil
	},
}

func init() {
	buildersCmd.Flags().Bool("json", false, "Print the catalog as JSON")

	rootCmd.AddCommand(buildersCmd)
}

func catalogTable(all []registry.Builder) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	inactive := cellStyle.Faint(true)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "KIND", "SHARE", "ACTIVE", "ENDPOINT", "ALIASES").
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case row >= 0 && row < len(all) && !all[row].Active:
				return inactive
			default:
				return cellStyle
			}
		})

	for _, b := range all {
		active := "no"
		if b.Active {
			active = "yes"
		}

		t.Row(
			b.Name,
			string(b.Kind),
			fmt.Sprintf("%.1f%%", b.MarketShare*100),
			active,
			b.Endpoint,
			strings.Join(b.Aliases, ","),
		)
	}

	return t.String()
}
