package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// ValidateCommand checks a statement against the current allowlist
// without executing it.
func ValidateCommand(version string) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a SQL statement against the allowlist without executing it",
		ArgsUsage: " <sql>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sqlText := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if sqlText == "" {
				return fmt.Errorf("expected a SQL statement, e.g. askdb validate \"SELECT id FROM orders LIMIT 10\"")
			}
			return runValidate(ctx, version, sqlText)
		},
	}
}

func runValidate(ctx context.Context, version, sqlText string) error {
	eng, err := newEngine(ctx, version)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.query.Validate(ctx, sqlText)
	if err != nil {
		return err
	}

	if result.IsValid {
		fmt.Println("Valid")
		fmt.Printf("Sanitized: %s\n", result.SanitizedSQL)
	} else {
		fmt.Println("Invalid")
		for _, e := range result.Errors {
			fmt.Printf("Error: %s\n", e)
		}
	}
	for _, warning := range result.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
	if len(result.TablesUsed) > 0 {
		fmt.Printf("Tables: %s\n", strings.Join(result.TablesUsed, ", "))
	}

	if !result.IsValid {
		return fmt.Errorf("statement rejected with %d error(s)", len(result.Errors))
	}

	return nil
}
