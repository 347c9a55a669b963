package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/timvw/evidence-lens/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the supported providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		s, err := a.store.Load(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tENDPOINT\tNOTES")
		for _, id := range provider.All() {
			p := provider.ProfileFor(id)
			mark := ""
			if id == s.Provider {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, id, p.EndpointPlaceholder(), p.Hint())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
