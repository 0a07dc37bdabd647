package main

import (
	"fmt"
	"os"

	"crossledger-reconciliation-service/cmd/crossledger/cmd"
	apperrors "crossledger-reconciliation-service/pkg/errors"
)

// Build information set via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)

		if ledgerErr, ok := apperrors.AsLedgerError(err); ok {
			os.Exit(ledgerErr.ExitCode())
		}
		os.Exit(1)
	}
}
