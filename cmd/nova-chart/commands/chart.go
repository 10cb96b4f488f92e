package commands

import (
	"fmt"
	"io"

	"novawatch/internal/chart"
	"novawatch/internal/jobenv"
	"novawatch/internal/nova"
	"novawatch/internal/pipeline"
	"novawatch/lib/tableutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func runChart(cmd *cobra.Command, args []string) error {
	env, err := jobenv.Setup(cmd.Context(), "nova-chart", configPath, verbose)
	if err != nil {
		return err
	}
	defer env.Close()

	path := env.Config.ChartOutput
	if output != "" {
		path = output
	}

	charter := pipeline.NewCharter(env.Client, env.Tel)
	t, err := charter.Run(cmd.Context(), pipeline.ChartOptions{
		Brands:  env.Config.Brands,
		Country: env.Config.Country,
		Output:  path,
		Chart:   chart.DefaultOptions(env.Config.Country),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTable(out, t)
	fmt.Fprintf(out, "Chart saved as %s\n", path)
	return nil
}

func printTable(out io.Writer, t nova.Table) {
	w := tableutil.NewTable(out)

	header := table.Row{"brand"}
	for _, g := range nova.Groups {
		header = append(header, string(g))
	}
	w.AppendHeader(header)

	for _, row := range t.Rows {
		r := table.Row{row.Brand}
		for _, g := range nova.Groups {
			r = append(r, fmt.Sprintf("%.1f%%", row.Get(g)))
		}
		w.AppendRow(r)
	}
	w.Render()
}
