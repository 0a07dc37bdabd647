package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"crossledger-reconciliation-service/internal/matcher"
	"crossledger-reconciliation-service/internal/reconciler"
	"crossledger-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	files            []string
	outputFormat     string
	outputFile       string
	amountTolerance  float64
	timeWindow       time.Duration
	nameThreshold    float64
	highConfidence   float64
	balanceTolerance float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile transaction exports from multiple platforms",
	Long: `Reconcile merges transaction exports from multiple platforms into one
canonical ledger and partitions the records into matched pairs, suspected
duplicates, and unilateral entries.

Supported inputs are CSV exports (UTF-8, GBK, or GB18030 encoded) and XLSX
workbooks from Alipay, WeChat Pay, and bank statements. Files that fail to
decode or lack a recognizable timestamp column are skipped with a warning;
the batch always continues with the remaining files.

Matching is a deterministic greedy pass: each record pairs with the first
later record within the amount tolerance, time window, and name similarity
threshold. It does not search for a globally optimal pairing.

Examples:
  # Reconcile two mobile payment exports against a bank statement
  crossledger reconcile --files alipay.csv,wechat.csv,bank.csv

  # Write a JSON summary to a file
  crossledger reconcile --files bills.csv --output-format json --output-file report.json

  # Excel difference report with custom tolerances
  crossledger reconcile --files a.csv,b.xlsx --output-format excel --output-file report.xlsx \
    --amount-tolerance 0.05 --time-window 10m --name-threshold 0.5`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringSliceVarP(&files, "files", "i", []string{}, "comma-separated paths to source export files (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, excel")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching threshold flags
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.01, "maximum absolute amount difference for a pair")
	reconcileCmd.Flags().DurationVarP(&timeWindow, "time-window", "w", 5*time.Minute, "maximum timestamp difference for a pair")
	reconcileCmd.Flags().Float64VarP(&nameThreshold, "name-threshold", "n", 0.6, "minimum counterparty name similarity (0.0-1.0)")
	reconcileCmd.Flags().Float64Var(&highConfidence, "high-confidence", 0.9, "similarity at which a pair is matched rather than suspected (0.0-1.0)")

	// Consistency check flags
	reconcileCmd.Flags().Float64Var(&balanceTolerance, "balance-tolerance", 100, "net amount above which the batch is flagged unbalanced")

	reconcileCmd.MarkFlagRequired("files")

	// Bind flags to viper
	viper.BindPFlag("files", reconcileCmd.Flags().Lookup("files"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("time-window", reconcileCmd.Flags().Lookup("time-window"))
	viper.BindPFlag("name-threshold", reconcileCmd.Flags().Lookup("name-threshold"))
	viper.BindPFlag("high-confidence", reconcileCmd.Flags().Lookup("high-confidence"))
	viper.BindPFlag("balance-tolerance", reconcileCmd.Flags().Lookup("balance-tolerance"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	files = viper.GetStringSlice("files")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	timeWindow = viper.GetDuration("time-window")
	nameThreshold = viper.GetFloat64("name-threshold")
	highConfidence = viper.GetFloat64("high-confidence")
	balanceTolerance = viper.GetFloat64("balance-tolerance")

	if len(files) == 0 {
		return fmt.Errorf("at least one input file is required")
	}

	if !reporter.ValidFormat(reporter.Format(outputFormat)) {
		return fmt.Errorf("invalid output format %q: must be console, json, csv, or excel", outputFormat)
	}

	if outputFormat == string(reporter.FormatExcel) && outputFile == "" {
		return fmt.Errorf("excel output requires --output-file")
	}

	return buildRunConfig().Validate()
}

func buildRunConfig() *reconciler.Config {
	return &reconciler.Config{
		Matching: &matcher.MatchConfig{
			AmountTolerance:         decimal.NewFromFloat(amountTolerance),
			TimeWindow:              timeWindow,
			NameSimilarityThreshold: nameThreshold,
			HighConfidenceThreshold: highConfidence,
		},
		BalanceTolerance: decimal.NewFromFloat(balanceTolerance),
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	engine, err := reconciler.New(buildRunConfig())
	if err != nil {
		return err
	}

	result, err := engine.ReconcileFiles(files)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := reporter.New().Write(result, reporter.Format(outputFormat), out); err != nil {
		return err
	}

	// Surface skipped files on the console even for machine formats, so a
	// partially failed batch is never mistaken for a clean one.
	if len(result.Skipped) > 0 && outputFormat != string(reporter.FormatConsole) {
		for _, skip := range result.Skipped {
			fmt.Fprintf(os.Stderr, "warning: skipped %s: %s\n", skip.File, skip.Reason)
		}
	}

	return nil
}
