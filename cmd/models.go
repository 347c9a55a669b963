package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/catalog"
)

var flagForce bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available for the provider",
	Long: `List the models of the current (or --provider) provider.

A previously fetched list is served from the settings cache; use --force to
query the provider again. When the provider cannot be reached, claude,
gemini and kimi fall back to a built-in list. The stored preference is
marked with "*".`,
	Args: cobra.NoArgs,
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

		models, err := a.catalog().Resolve(ctx, run.Creds, flagForce)
		if err != nil {
			if len(models) == 0 {
				return fmt.Errorf("listing models for %s: %w", run.Creds.Provider, err)
			}
			a.log.Warn("model list failed, using fallback", zap.Error(err))
			fmt.Fprintf(os.Stderr, "warning: %v (showing fallback list)\n", err)
		}

		opts := catalog.Selectable(models, run.Creds.Model)
		for _, m := range opts.Models {
			mark := " "
			if m == opts.Selected {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
		if opts.Custom && opts.CustomValue != "" {
			fmt.Printf("* %s (custom)\n", opts.CustomValue)
		}
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&flagForce, "force", false, "ignore the cached list and query the provider")
	rootCmd.AddCommand(modelsCmd)
}
