package cmd

import (
	"github.com/spf13/cobra"

	"github.com/timvw/evidence-lens/internal/panel"
)

var panelCmd = &cobra.Command{
	Use:   "panel [url]",
	Short: "Open the interactive side panel",
	Long: `Open the interactive panel in the terminal. When a URL is given it is
analyzed right away; otherwise press "r" or "u" to enter one.

Keys:
  r          refresh the current page
  u          change the URL
  1 2 3, tab switch between facts, claims and opinions
  /          search, esc clears
  enter      expand the selected item
  [ ]        previous / next model (saved as the provider preference)
  m          reload the model list from the provider
  p          toggle the text preview
  q          quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, true)
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

		pn := &panel.Panel{
			Pipeline:  p,
			Catalog:   a.catalog(),
			Store:     a.store,
			Overrides: o,
			Theme:     panel.ThemeByName(a.cfg.Theme),
			Logger:    a.log,
		}
		if len(args) == 1 {
			pn.URL = args[0]
		}
		return pn.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(panelCmd)
}
