package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpverify/pkg/cli"
	"github.com/newtron-network/fpverify/pkg/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persistent settings",
		Long: `Manage persistent settings stored in ~/.fpverify/settings.yaml.
FPVERIFY_<KEY> environment variables override the file.

Examples:
  fpverify settings show
  fpverify settings set bindings ~/lab/bindings.yaml
  fpverify settings set node sw1
  fpverify settings clear`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

				t := cli.NewTable(os.Stdout, "SETTING", "VALUE")
				for _, key := range settings.Keys() {
					value, _ := appSettings.Get(key)
					if value == "" {
						value = "(not set)"
					}
					t.Row(key, value)
				}
				t.Flush()
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <setting>",
			Short: "Get a setting value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := appSettings.Get(args[0])
				if err != nil {
					return err
				}
				if value == "" {
					value = "(not set)"
				}
				fmt.Println(value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <setting> <value>",
			Short: "Set a setting value",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				// Environment overrides are not persisted.
				s, err := settings.LoadFile(settings.DefaultSettingsPath())
				if err != nil {
					return fmt.Errorf("loading settings: %w", err)
				}
				if err := s.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := s.Save(); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				fmt.Printf("%s set to: %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear all settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s := &settings.Settings{}
				if err := s.Save(); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				fmt.Println("Settings cleared.")
				return nil
			},
		},
	)

	return cmd
}
