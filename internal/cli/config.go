package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/drl3d/pkg/config"
	"github.com/matzehuels/drl3d/pkg/errors"
	"github.com/matzehuels/drl3d/pkg/pipeline"
)

// configCommand creates the config management command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write persistent settings",
		Long: `Read and write persistent settings.

Keys are dotted paths into the TOML file, for example layout.max_iterations,
layout.gravity, cache.backend, cache.url, or server.addr.`,
	}

	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configGetCommand())
	cmd.AddCommand(c.configSetCommand())

	return cmd
}

func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.loadConfig()
			if err != nil {
				return err
			}
			printKeyValue("file", store.Path())
			keys := store.Keys()
			if len(keys) == 0 {
				printInfo("No settings; defaults apply")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSettings(store))
			return nil
		},
	}
}

// renderSettings formats the store as a two-column table.
func renderSettings(store *config.Store) string {
	rows := make([][]string, 0, len(store.Keys()))
	for _, k := range store.Keys() {
		v, _ := store.Value(k)
		rows = append(rows, []string{k, v})
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Key", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorTeal)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		}).
		Render()
}

func (c *CLI) configGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.loadConfig()
			if err != nil {
				return err
			}
			v, ok := store.Value(args[0])
			if !ok {
				return errors.New(errors.ErrCodeNotFound, "%s is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (c *CLI) configSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.loadConfig()
			if err != nil {
				return err
			}
			key, value := args[0], args[1]
			if err := validateSetting(store, key, value); err != nil {
				return err
			}
			store.Add(key, value)
			if err := store.Save(); err != nil {
				return err
			}
			printSuccess("%s = %s", key, value)
			printDetail("Saved to %s", store.Path())
			return nil
		},
	}
}

// validateSetting rejects layout values that would make every later run fail.
func validateSetting(store *config.Store, key, value string) error {
	if !strings.HasPrefix(key, "layout.") {
		return nil
	}
	trial := config.New()
	for _, k := range store.Keys() {
		v, _ := store.Value(k)
		trial.Add(k, v)
	}
	trial.Add(key, value)

	opts := pipeline.DefaultOptions()
	if err := opts.ApplyConfig(trial); err != nil {
		return err
	}
	return opts.ValidateForLayout()
}
