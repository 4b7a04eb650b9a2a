package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/askdb-inc/askdb-engine/pkg/services"
)

// AskCommand answers a natural-language question with a validated,
// executed SQL query.
func AskCommand(version string) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a natural-language question with SQL",
		ArgsUsage: " <question>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sql-only",
				Usage: "print the generated SQL without result rows",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if question == "" {
				return fmt.Errorf("expected a question, e.g. askdb ask \"total sales by month\"")
			}
			return runAsk(ctx, version, question, cmd.Bool("sql-only"))
		},
	}
}

func runAsk(ctx context.Context, version, question string, sqlOnly bool) error {
	eng, err := newEngine(ctx, version)
	if err != nil {
		return err
	}
	defer eng.Close()

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Writer = os.Stderr
	sp.Suffix = " thinking..."
	sp.Start()

	answer, err := eng.query.Ask(ctx, question)
	sp.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("SQL: %s\n", answer.SQL)
	fmt.Printf("Source: %s (%.2fs)\n", answer.Source, answer.Elapsed.Seconds())
	if answer.Explanation != "" {
		fmt.Printf("Explanation: %s\n", answer.Explanation)
	}
	for _, warning := range answer.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}

	if sqlOnly || answer.Result == nil {
		return nil
	}

	fmt.Println()
	printResult(answer)

	return nil
}

func printResult(answer *services.Answer) {
	result := answer.Result

	if len(result.Columns) > 0 {
		fmt.Println(strings.Join(result.Columns, " | "))
		fmt.Println(strings.Repeat("-", len(strings.Join(result.Columns, " | "))))
	}

	for _, row := range result.Rows {
		values := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			values[i] = formatValue(row[col])
		}
		fmt.Println(strings.Join(values, " | "))
	}

	fmt.Printf("\n%d row(s)\n", result.RowCount)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
