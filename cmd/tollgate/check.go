package main

import (
	"encoding/json"
	"fmt"

	"github.com/guillermoBallester/tollgate/internal/core/service"
	"github.com/spf13/cobra"
)

// InvalidValueError is returned by check when the value would breach the
// rule. It carries the result so callers can still inspect it.
type InvalidValueError struct {
	Result *service.CheckResult
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.Result.Rule, e.Result.Message)
}

// ExitCode distinguishes a failed check from a failed run.
func (e *InvalidValueError) ExitCode() int {
	return 2
}

func newCheckCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one threshold check and print the outcome as JSON",
		Long: "check looks up the rule's record and reports whether stored + value stays within the maximum.\n" +
			"Exit status is 0 when valid, 2 when invalid and 1 on error.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, _ := cmd.Flags().GetString("rule")
			value, _ := cmd.Flags().GetString("value")

			req := service.CheckRequest{Rule: rule, Value: value}
			if cmd.Flags().Changed("key-value") {
				req.KeyValue, _ = cmd.Flags().GetString("key-value")
			}

			a, _, _, err := setup(cmd, open)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := service.WithSource(cmd.Context(), "cli")
			result, err := a.checks.Check(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}

			if !result.Valid {
				return &InvalidValueError{Result: result}
			}
			return nil
		},
	}

	cmd.Flags().String("rule", "", "rule name from the rules file")
	cmd.Flags().String("value", "", "candidate increment")
	cmd.Flags().String("key-value", "", "key of the record to check (defaults to the rule's key_value)")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
