package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q: want text, json or yaml", format)
}

// render writes v as json or yaml, or calls text for the human format
func render(cmd *cobra.Command, format string, v interface{}, text func(w io.Writer) error) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		if err := text(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}
