package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SchemaCommand displays the discovered schema that backs the allowlist.
func SchemaCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Display the discovered tables and columns",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "force a fresh discovery instead of the cached snapshot",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runSchema(ctx, version, cmd.Bool("refresh"))
		},
	}
}

func runSchema(ctx context.Context, version string, refresh bool) error {
	eng, err := newEngine(ctx, version)
	if err != nil {
		return err
	}
	defer eng.Close()

	if refresh {
		eng.query.InvalidateSchema()
	}

	snap, err := eng.query.Schema(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Discovered %d table(s) at %s\n", len(snap.Tables), snap.DiscoveredAt.Format("2006-01-02 15:04:05"))
	if snap.Truncated {
		fmt.Println("Note: table list truncated by schema.max_tables")
	}

	for _, table := range snap.Tables {
		fmt.Printf("\n%s (~%d rows)\n", table.Name, table.RowCount)
		for _, col := range table.Columns {
			marker := ""
			if col.IsPrimary {
				marker = " [PK]"
			}
			nullable := "not null"
			if col.IsNullable {
				nullable = "nullable"
			}
			fmt.Printf("  %-30s %-20s %s%s\n", col.Name, col.DataType, nullable, marker)
		}
	}

	return nil
}
