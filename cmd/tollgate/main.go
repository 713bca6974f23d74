package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := execute(ctx, newRootCmd(openApp), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitCoder is implemented by errors that map to a specific exit status.
type exitCoder interface {
	ExitCode() int
}

// execute runs the command tree and returns the process exit status.
func execute(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "tollgate: %v\n", err)

	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "tollgate",
		Short:         "Check stored PostgreSQL values against configured ceilings",
		Long:          "tollgate checks whether adding a value to a numeric field of one keyed row would exceed a configured maximum.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addConfigFlags(root.PersistentFlags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(newServeCmd(open), newCheckCmd(open), versionCmd)
	return root
}
