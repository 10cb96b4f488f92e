package commands

import (
	"fmt"
	"io"

	"novawatch/internal/brandtable"
	"novawatch/internal/jobenv"
	"novawatch/internal/offsql"
	"novawatch/internal/pipeline"
	"novawatch/lib/tableutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := jobenv.Setup(ctx, "update-brand", configPath, verbose)
	if err != nil {
		return err
	}
	defer env.Close()

	brand := env.Config.DefaultBrand
	if len(args) > 0 {
		brand = args[0]
	}
	brand = offsql.NormalizeBrand(brand)
	cutoff, err := env.Config.Cutoff()
	if err != nil {
		return err
	}

	var archiver pipeline.Archiver
	a, err := env.Archive(ctx)
	if err != nil {
		// the table update still goes through without the mirror
		env.Tel.ReportBroken("open archive", err)
	} else if a != nil {
		archiver = a
	}

	updater := pipeline.NewUpdater(env.Client, archiver, env.Clock, env.Tel)
	result, err := updater.Run(ctx, pipeline.UpdateOptions{
		Brand:      brand,
		Country:    env.Config.Country,
		Cutoff:     cutoff,
		DataDir:    env.Config.DataDir,
		StatusFile: env.Config.StatusFile,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printResult(out, env.Config.StatusFile, brand, result)

	if a != nil && result.Changed() {
		total, err := a.Count(ctx, brand)
		if err != nil {
			env.Tel.ReportWarning("count archive", err)
		} else {
			fmt.Fprintf(out, "Archive holds %d records for %s\n", total, brand)
		}
	}
	return nil
}

var summaryColumns = []string{"code", "product_name", "nova_group", "nutriscore_grade", "brands"}

func printResult(out io.Writer, statusFile, brand string, result pipeline.UpdateResult) {
	if !result.Changed() {
		fmt.Fprintln(out, "No new valid records found. Nothing to update.")
		return
	}

	fmt.Fprintf(out, "Added %d new records to %s\n", len(result.Added), result.TablePath)

	t := tableutil.NewTable(out)
	header := make(table.Row, len(summaryColumns))
	for i, c := range summaryColumns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range result.Added {
		t.AppendRow(summaryRow(row))
	}
	t.Render()

	if result.Archived > 0 {
		fmt.Fprintf(out, "Archived %d records\n", result.Archived)
	}
	fmt.Fprintf(out, "Updated %s with last updated date for %s: %s\n", statusFile, brand, result.Date)
}

func summaryRow(row brandtable.Row) table.Row {
	out := make(table.Row, len(summaryColumns))
	for i, c := range summaryColumns {
		out[i] = row[c]
	}
	return out
}
