package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comictag/internal/comicinfo"
)

func newFieldsCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "fields",
		Short:       "List the editable ComicInfo fields",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := comicinfo.DefaultSchema
			if jsonOutput {
				type fieldSpecJSON struct {
					Tag     string   `json:"tag"`
					Label   string   `json:"label"`
					Section string   `json:"section"`
					Kind    string   `json:"kind"`
					Options []string `json:"options,omitempty"`
				}
				specs := make([]fieldSpecJSON, 0, len(schema))
				for _, spec := range schema {
					specs = append(specs, fieldSpecJSON{
						Tag:     spec.Tag,
						Label:   spec.Label,
						Section: spec.Section,
						Kind:    spec.Kind.String(),
						Options: spec.Options,
					})
				}
				return writeJSON(cmd, specs)
			}

			rows := make([][]string, 0, len(schema))
			for _, spec := range schema {
				rows = append(rows, []string{spec.Section, spec.Tag, spec.Label, spec.Kind.String(), strings.Join(spec.Options, ", ")})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Section", "Tag", "Label", "Kind", "Options"}, rows, nil))
			fmt.Fprintf(out, "Use %q to leave a field unchanged and an empty value to clear it.\n", comicinfo.Keep)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
