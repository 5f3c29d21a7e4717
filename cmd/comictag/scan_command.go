package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"comictag/internal/catalog"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var sortOrder string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List archives and page folders under the source directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.loadCatalog(cmd.Context(), sortOrder)
			if err != nil {
				return err
			}
			if jsonOutput {
				items := make([]itemJSON, 0, len(cat.Items))
				for i, item := range cat.Items {
					items = append(items, newItemJSON(i+1, item, cat.Record(item.RelPath)))
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(cat.Items) == 0 {
				fmt.Fprintf(out, "No comics found under %s\n", cat.Root)
				return nil
			}
			fmt.Fprint(out, renderCatalogTable(cat))
			fmt.Fprintf(out, "\n%d item(s), sorted by %s\n", len(cat.Items), cat.Order)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortOrder, "sort", "", "Ordering: manual, name or number (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderCatalogTable(cat *catalog.Catalog) string {
	rows := make([][]string, 0, len(cat.Items))
	for i, item := range cat.Items {
		rec := cat.Record(item.RelPath)
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.RelPath,
			string(item.Kind),
			dash(singleLine(fieldValue(rec, "Series"))),
			dash(fieldValue(rec, "Number")),
			dash(singleLine(fieldValue(rec, "Title"))),
			item.Problem,
		})
	}
	return renderTable(
		[]string{"#", "Path", "Kind", "Series", "Number", "Title", "Problem"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	) + "\n"
}
