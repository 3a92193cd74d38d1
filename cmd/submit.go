package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/report"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a bundle of signed raw transactions",
	Long: `Submits a bundle of signed raw transactions to the top healthy builders
concurrently and reports which builders accepted it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		txHex, _ := flags.GetStringSlice("tx")
		txFile, _ := flags.GetString("tx-file")
		block, _ := flags.GetUint64("block")
		hints, _ := flags.GetStringSlice("hint")
		allowBuilders, _ := flags.GetStringSlice("allow-builder")
		replaceable, _ := flags.GetBool("replaceable")
		minTimestamp, _ := flags.GetUint64("min-timestamp")
		maxTimestamp, _ := flags.GetUint64("max-timestamp")
		reverting, _ := flags.GetStringSlice("reverting")
		asJSON, _ := flags.GetBool("json")

		if txFile != "" {
			fromFile, err := readTxFile(txFile)
			if err != nil {
				return err
			}

			txHex = append(txHex, fromFile...)
		}

		rawTxs, err := decodeTxs(txHex)
		if err != nil {
			return err
		}

		opts := make([]bundle.Option, 0, 4)

		if len(hints) > 0 || len(allowBuilders) > 0 {
			opts = append(opts, bundle.WithPrivacy(hints, allowBuilders))
		}

		if minTimestamp > 0 || maxTimestamp > 0 {
			if maxTimestamp > 0 && minTimestamp > maxTimestamp {
				return fmt.Errorf("--min-timestamp must not exceed --max-timestamp")
			}

			opts = append(opts, bundle.WithTimestamps(minTimestamp, maxTimestamp))
		}

		if len(reverting) > 0 {
			hashes := make([]common.Hash, 0, len(reverting))

			for _, h := range reverting {
				if !isHexHash(h) {
					return fmt.Errorf("invalid reverting tx hash %q", h)
				}

				hashes = append(hashes, common.HexToHash(h))
			}

			opts = append(opts, bundle.WithRevertingTxHashes(hashes...))
		}

		if replaceable {
			id := uuid.New()
			opts = append(opts, bundle.WithReplacementUUID(id))

			logger.WithField("uuid", id.String()).Info("Bundle is replaceable")
		}

		a, err := setupApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		target, err := a.targetBlock(ctx, block)
		if err != nil {
			return err
		}

		b, err := bundle.New(target, rawTxs, opts...)
		if err != nil {
			return err
		}

		logBundle(a, b)

		res, err := a.manager.Submit(ctx, b)
		if err != nil && !errors.Is(err, manager.ErrNoHealthyBuilders) {
			return err
		}

		vr := report.Build(res, a.registry.Active(), a.manager.Config().TopN)

		return printReport(cmd.OutOrStdout(), vr, asJSON)
	},
}

func init() {
	submitCmd.Flags().StringSlice("tx", nil, "Signed raw transaction (hex), repeatable, in bundle order")
	submitCmd.Flags().String("tx-file", "", "File with one signed raw transaction (hex) per line")
	submitCmd.Flags().Uint64("block", 0, "Target block (default: latest+1 from --el-rpc)")
	submitCmd.Flags().StringSlice("hint", nil, "Privacy hint, repeatable")
	submitCmd.Flags().StringSlice("allow-builder", nil, "Restrict BuilderNet sharing to these builders, repeatable")
	submitCmd.Flags().Bool("replaceable", false, "Attach a random replacement UUID")
	submitCmd.Flags().Uint64("min-timestamp", 0, "Minimum block timestamp")
	submitCmd.Flags().Uint64("max-timestamp", 0, "Maximum block timestamp")
	submitCmd.Flags().StringSlice("reverting", nil, "Hash of a tx allowed to revert, repeatable")
	submitCmd.Flags().Bool("json", false, "Print the report as JSON")

	rootCmd.AddCommand(submitCmd)
}

func readTxFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tx file: %w", err)
	}
	defer f.Close()

	var txs []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		txs = append(txs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tx file: %w", err)
	}

	return txs, nil
}

func decodeTxs(txHex []string) ([][]byte, error) {
	if len(txHex) == 0 {
		return nil, fmt.Errorf("at least one --tx or --tx-file entry is required")
	}

	raw := make([][]byte, 0, len(txHex))

	for i, h := range txHex {
		if !strings.HasPrefix(h, "0x") {
			h = "0x" + h
		}

		data, err := hexutil.Decode(h)
		if err != nil {
			return nil, fmt.Errorf("tx %d: invalid hex: %w", i, err)
		}

		raw = append(raw, data)
	}

	return raw, nil
}

func isHexHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}

	_, err := hexutil.Decode("0x" + s)

	return err == nil
}

func logBundle(a *app, b *bundle.StandardBundle) {
	summary, err := b.Inspect(a.wallet.ChainID())
	if err != nil {
		logger.WithError(err).Warn("Failed to inspect bundle")
		return
	}

	for _, tx := range summary.Txs {
		fields := logrus.Fields{
			"hash":  tx.Hash.Hex(),
			"from":  tx.From.Hex(),
			"nonce": tx.Nonce,
			"value": tx.Value.Dec(),
		}

		if tx.Method != "" {
			fields["call"] = tx.Contract + "." + tx.Method
		}

		logger.WithFields(fields).Debug("Bundle tx")
	}

	logger.WithFields(logrus.Fields{
		"block":       summary.BlockNumber,
		"bundle_hash": summary.BundleHash.Hex(),
		"txs":         len(summary.Txs),
		"total_value": summary.TotalValue.Dec(),
	}).Info("Submitting bundle")
}
