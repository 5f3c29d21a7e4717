package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/merge"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var xmlOutput bool

	cmd := &cobra.Command{
		Use:   "show <path|number>...",
		Short: "Show the metadata of one item, or the values shared by several",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.loadCatalog(cmd.Context(), "")
			if err != nil {
				return err
			}
			if len(args) > 1 {
				if xmlOutput {
					return errors.New("--xml needs a single item")
				}
				items, err := resolveItems(cat, args)
				if err != nil {
					return err
				}
				return renderCommon(cmd, cat, items, jsonOutput)
			}
			item, err := resolveItem(cat, args[0])
			if err != nil {
				return err
			}
			rec := cat.Record(item.RelPath)
			index := 0
			for i, candidate := range cat.Items {
				if candidate.RelPath == item.RelPath {
					index = i + 1
					break
				}
			}

			switch {
			case jsonOutput:
				return writeJSON(cmd, newRecordJSON(index, item, rec))
			case xmlOutput:
				doc, err := comicinfo.Generate(rec)
				if err != nil {
					return fmt.Errorf("generate %s: %w", comicinfo.DocumentName, err)
				}
				_, err = cmd.OutOrStdout().Write(doc)
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(item.RelPath, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "Kind: %s\n", item.Kind)
			if rec.OriginalLocation != "" {
				fmt.Fprintf(out, "Document: %s\n", rec.OriginalLocation)
			}
			if item.Problem != "" {
				fmt.Fprintln(out, colorizeText("Problem: "+item.Problem, statusWarn, colorize))
			}
			fmt.Fprintln(out)

			if rec.IsEmpty() {
				fmt.Fprintln(out, "No metadata")
				return nil
			}
			fmt.Fprint(out, renderRecordTable(rec))
			if len(rec.Namespaces) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Namespaces", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, ns := range rec.Namespaces {
					fmt.Fprintf(out, "%s%s = %s\n", statusIndent, ns.Prefix, ns.URI)
				}
			}
			if complexes := complexSummary(rec); len(complexes) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Complex elements", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, entry := range complexes {
					fmt.Fprintf(out, "%s%s\n", statusIndent, entry)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&xmlOutput, "xml", false, "Print the document as it would be written")
	cmd.MarkFlagsMutuallyExclusive("json", "xml")
	return cmd
}

// renderRecordTable lists schema fields first, in schema order, then every
// other field in document order.
func renderRecordTable(rec comicinfo.Record) string {
	schema := comicinfo.DefaultSchema
	var rows [][]string
	for _, spec := range schema {
		if value, ok := rec.Field(comicinfo.BasePrefix, spec.Tag); ok {
			rows = append(rows, []string{spec.Label, spec.Tag, singleLine(value)})
		}
	}
	for _, group := range rec.Fields {
		for _, f := range group.Fields {
			if group.Prefix == comicinfo.BasePrefix && schema.Index(f.Tag) >= 0 {
				continue
			}
			rows = append(rows, []string{"", qualifiedTag(group.Prefix, f.Tag), singleLine(f.Value)})
		}
	}
	if len(rows) == 0 {
		return "No simple fields\n"
	}
	return strings.TrimRight(renderTable([]string{"Field", "Tag", "Value"}, rows, nil), "\n") + "\n"
}

// renderCommon lists, per schema field, the value every item shares or a
// marker when the items disagree.
func renderCommon(cmd *cobra.Command, cat *catalog.Catalog, items []catalog.Item, jsonOutput bool) error {
	records := make([]comicinfo.Record, 0, len(items))
	for _, item := range items {
		records = append(records, cat.Record(item.RelPath))
	}
	common := merge.Common(records, comicinfo.BasePrefix, comicinfo.DefaultSchema.Tags())

	if jsonOutput {
		out := make(map[string]string, len(common))
		for _, edit := range common {
			out[edit.Tag] = edit.Value
		}
		return writeJSON(cmd, out)
	}

	rows := make([][]string, 0, len(common))
	for _, edit := range common {
		value := singleLine(edit.Value)
		switch edit.Value {
		case merge.Keep:
			value = "(differs)"
		case "":
			continue
		}
		rows = append(rows, []string{edit.Tag, value})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Shared values across %d items\n", len(items))
	if len(rows) == 0 {
		fmt.Fprintln(out, "No fields set")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"Tag", "Value"}, rows, nil))
	return nil
}
