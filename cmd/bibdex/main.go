// Package main provides the entry point for the bibdex CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/bibdex/cmd/bibdex/cmd"
	bderrors "github.com/Aman-CERP/bibdex/internal/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.Execute()
	if err == nil {
		return cmd.ExitOK
	}

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, bderrors.FormatForCLI(exitErr.Err))
		}
		return exitErr.Code
	}

	fmt.Fprintln(os.Stderr, bderrors.FormatForCLI(err))
	return cmd.ExitFatal
}
