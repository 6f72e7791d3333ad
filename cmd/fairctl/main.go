package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fairctl",
		Short:         "Audit provably fair rounds and issue API tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		HashCmd(),
		DeriveCmd(),
		VerifyCmd(),
		TokenCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, ErrVerificationFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
