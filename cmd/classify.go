package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagExtractOnly bool

var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Classify the statements on a page into facts, claims and opinions",
	Long: `Extract the page text, send it with the prompt template to the configured
provider and print the parsed evidence extract as JSON.

The model's answer is repaired when it wraps the JSON in prose or leaves
trailing commas. Anything else is reported as an error with a preview of
the response.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		o, err := overrides()
		if err != nil {
			return err
		}

		p, release := a.pipeline()
		defer release()

		res, err := p.Refresh(ctx, args[0], o)
		if err != nil {
			return fmt.Errorf("classifying %s: %w", args[0], err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if flagExtractOnly {
			return enc.Encode(res.Extract)
		}
		return enc.Encode(res)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&flagExtractOnly, "extract-only", false, "print only the evidence extract")
	rootCmd.AddCommand(classifyCmd)
}
