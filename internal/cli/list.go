package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/itemwatch/internal/fetcher"
	"github.com/idilsaglam/itemwatch/internal/model"
	"github.com/idilsaglam/itemwatch/internal/ui"
)

func newListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "Print the items once and exit",
		Example: `  itemwatch ls
  itemwatch ls -o json
  itemwatch ls --demo -o table`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			render, ok := renderers[output]
			if !ok {
				return usagef("ls: unknown output format %q (want text, table, json or yaml)", output)
			}

			log, closer, err := a.clientLogger()
			if err != nil {
				return err
			}
			defer closer.Close()

			tp, err := a.tracing(cmd.Context())
			if err != nil {
				return err
			}
			defer tp.Shutdown(context.Background())

			items, err := fetcher.New(a.database(), fetcher.WithLogger(log)).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("ls: %w", err)
			}
			return render(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, table, json or yaml")
	return cmd
}

var renderers = map[string]func(io.Writer, []model.Item) error{
	"text":  renderText,
	"table": renderTable,
	"json":  renderJSON,
	"yaml":  renderYAML,
}

func renderText(w io.Writer, items []model.Item) error {
	lines := append([]string{ui.Header(listTitle, len(items))}, ui.ItemLines(items)...)
	ui.Panel(w, lines)
	return nil
}

func renderTable(w io.Writer, items []model.Item) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name")
	for _, it := range items {
		if err := table.Append(it.ID, it.Name); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderJSON(w io.Writer, items []model.Item) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func renderYAML(w io.Writer, items []model.Item) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return err
	}
	return enc.Close()
}
