package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/anstrom/tellix/internal/config"
)

const defaultConfigPath = "config.yaml"

var configForce bool

// configCmd groups configuration file commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the tellix configuration file",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// configInitCmd writes the built-in defaults to a file.
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Long: `Write the built-in defaults as YAML, ready to edit. The path defaults to
./config.yaml, which tellix reads on startup. Existing files are kept unless
--force is given.`,
	Example: `  tellix config init
  tellix config init ~/.config/tellix/config.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		return writeDefaultConfig(cmd.OutOrStdout(), path, configForce)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}

// writeDefaultConfig saves config.Default to path.
func writeDefaultConfig(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Wrote default configuration to %s\n", path)
	return err
}
