package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/timvw/evidence-lens/internal/settings"
)

var (
	flagReveal   bool
	flagJSON     bool
	flagFromFile bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the stored settings",
	Long: `The stored settings are the provider, API key, endpoint, text budget
(maxChars), prompt template (promptPy) and the model preference per
provider. Where they are stored is set in the config file
(settings_backend: file, sqlite or memory).`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored settings (API key masked)",
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
		if !flagReveal {
			s = s.Redacted()
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(s)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(s)
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Long:  "Keys: " + strings.Join(settings.Keys, ", "),
	Args:  cobra.ExactArgs(1),
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
		if args[0] == "apiKey" && !flagReveal {
			s = s.Redacted()
		}
		v, err := s.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Keys: ` + strings.Join(settings.Keys, ", ") + `

"model" sets the preference for the current provider. With --from-file the
value is read from the named file, which is handy for promptPy.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		key, value := args[0], args[1]
		if flagFromFile {
			data, err := os.ReadFile(value)
			if err != nil {
				return fmt.Errorf("reading %s: %w", value, err)
			}
			value = string(data)
		}

		if _, err := settings.Update(ctx, a.store, func(s *settings.Settings) error {
			return s.Set(key, value)
		}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s updated\n", key)
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.store.Save(ctx, settings.Defaults()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "settings reset")
		return nil
	},
}

func init() {
	settingsShowCmd.Flags().BoolVar(&flagReveal, "reveal", false, "print the API key unmasked")
	settingsShowCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of YAML")
	settingsGetCmd.Flags().BoolVar(&flagReveal, "reveal", false, "print the API key unmasked")
	settingsSetCmd.Flags().BoolVar(&flagFromFile, "from-file", false, "read the value from a file")

	settingsCmd.AddCommand(settingsShowCmd, settingsGetCmd, settingsSetCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}
