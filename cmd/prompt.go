package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/evidence-lens/internal/prompt"
)

var flagDefault bool

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt template",
	Long: `Print the stored prompt template (or --prompt-file when given).
Use --default to print the built-in template.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagDefault {
			fmt.Print(prompt.DefaultTemplate)
			return nil
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		run, err := a.run(ctx)
		if err != nil {
			return err
		}
		tpl := run.Template
		if tpl == "" {
			tpl = prompt.DefaultTemplate
		}
		fmt.Print(tpl)
		return nil
	},
}

var promptRenderCmd = &cobra.Command{
	Use:   "render <url>",
	Short: "Extract a page and print the prompt that would be sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		run, err := a.run(ctx)
		if err != nil {
			return err
		}

		ex, release := a.extractor()
		defer release()

		page, err := ex.Extract(ctx, args[0])
		if err != nil {
			return err
		}
		if page.URL == "" {
			page.URL = args[0]
		}

		fmt.Println(prompt.Build(run.Template, prompt.Vars{
			Title: page.Title,
			URL:   page.URL,
			Text:  prompt.Truncate(page.Text, run.MaxChars),
		}))
		return nil
	},
}

func init() {
	promptCmd.Flags().BoolVar(&flagDefault, "default", false, "print the built-in template")
	promptCmd.AddCommand(promptRenderCmd)
	rootCmd.AddCommand(promptCmd)
}
