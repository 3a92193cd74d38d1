package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/report"
)

const placeholderBlock = 1

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Dry-run the multi-builder pipeline and report coverage",
	Long: `Health checks every active builder, selects the top builders by market
share and reports the block coverage a submission would reach. No bundle is
sent. The command exits 0 once the report is printed, even when no builder
is healthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		block, _ := cmd.Flags().GetUint64("block")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := setupApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		target, err := a.dryRunBlock(ctx, block)
		if err != nil {
			return err
		}

		// 1. Validation bundle
		tx, err := a.wallet.BuildValidationTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to build validation tx: %w", err)
		}

		raw, err := tx.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to encode validation tx: %w", err)
		}

		vb, err := bundle.New(target, [][]byte{raw})
		if err != nil {
			return err
		}

		// 2. Dry run
		res, err := a.manager.DryRun(ctx, vb)
		if err != nil && !errors.Is(err, manager.ErrNoHealthyBuilders) {
			return err
		}

		vr := report.Build(res, a.registry.Active(), a.manager.Config().TopN)

		return printReport(cmd.OutOrStdout(), vr, asJSON)
	},
}

func init() {
	validateCmd.Flags().Uint64("block", 0, "Target block (default: latest+1 from --el-rpc, or a placeholder without one)")
	validateCmd.Flags().Bool("json", false, "Print the report as JSON")

	rootCmd.AddCommand(validateCmd)
}

// dryRunBlock is the target block of a dry run. Nothing is sent, so without
// --block or an EL node any block number will do.
func (a *app) dryRunBlock(ctx context.Context, explicit uint64) (uint64, error) {
	if explicit == 0 && a.el == nil {
		logger.WithField("block", placeholderBlock).Debug("No --block or --el-rpc configured, using placeholder target block")

		return placeholderBlock, nil
	}

	return a.targetBlock(ctx, explicit)
}

func printReport(w io.Writer, vr *report.ValidationReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(vr)
	}

	return report.Render(w, vr)
}
