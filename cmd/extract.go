package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/evidence-lens/internal/prompt"
)

var (
	flagTextOnly bool
	flagTruncate bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Print the visible text extracted from a page",
	Long: `Extract the readable text of a page the way classify does: <main> is
preferred over <body>; scripts, styles, navigation, headers, footers and
asides are dropped; whitespace is normalized.

The extractor is chosen in the config file ("http" or "browser").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		ex, release := a.extractor()
		defer release()

		page, err := ex.Extract(ctx, args[0])
		if err != nil {
			return err
		}

		if flagTruncate {
			run, err := a.run(ctx)
			if err != nil {
				return err
			}
			page.Text = prompt.Truncate(page.Text, run.MaxChars)
		}

		if flagTextOnly {
			fmt.Println(page.Text)
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(page)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&flagTextOnly, "text", false, "print only the text")
	extractCmd.Flags().BoolVar(&flagTruncate, "truncate", false, "cut the text to the configured budget")
	rootCmd.AddCommand(extractCmd)
}
