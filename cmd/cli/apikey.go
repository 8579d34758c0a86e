package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/tellix/internal/auth"
)

var (
	apiKeyName   string
	apiKeyOutput string
)

// apiKeyCmd groups API key commands.
var apiKeyCmd = &cobra.Command{
	Use:     "apikey",
	Aliases: []string{"apikeys", "key"},
	Short:   "Manage API keys for the HTTP API",
	Long: `Manage API keys for "tellix serve".

Keys are never stored. Only their bcrypt hashes go into api.api_key_hashes in
the config file. Authentication is disabled while that list is empty.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// apiKeyGenerateCmd creates a key and prints its hash.
var apiKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key",
	Long: `Generate a new API key and print it together with its bcrypt hash.

The key is shown only once. Add the hash to api.api_key_hashes and give the
key to the client, which sends it in the X-API-Key header.`,
	Example: `  tellix apikey generate --name "recon agent"
  tellix apikey generate --name ci --output yaml >> config.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.GenerateAPIKey(apiKeyName)
		if err != nil {
			return err
		}
		return printAPIKey(cmd.OutOrStdout(), key, apiKeyOutput)
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyGenerateCmd)

	apiKeyGenerateCmd.Flags().StringVarP(&apiKeyName, "name", "n", "", "Name describing the key holder")
	apiKeyGenerateCmd.Flags().StringVarP(&apiKeyOutput, "output", "o", "text", "Output format: text, json or yaml")
	_ = apiKeyGenerateCmd.MarkFlagRequired("name")
}

// printAPIKey renders a generated key in the requested format.
func printAPIKey(w io.Writer, key *auth.GeneratedAPIKey, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(key)
	case "yaml":
		// Ready to merge into the config file
		snippet := map[string]any{
			"api": map[string]any{
				"api_key_hashes": []string{key.Hash},
			},
		}
		_, _ = fmt.Fprintf(w, "# %s (%s)\n", key.Name, key.KeyPrefix)
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()
		return encoder.Encode(snippet)
	case "text":
		_, err := fmt.Fprintf(w, `API key created: %s

  Key:     %s
  Hash:    %s
  Created: %s

Save the key now, it cannot be shown again.
Add the hash to api.api_key_hashes in your config file.
`, key.Name, key.Key, key.Hash, key.CreatedAt.Format("2006-01-02 15:04:05"))
		return err
	default:
		return fmt.Errorf("invalid output format %q (use text, json or yaml)", format)
	}
}
