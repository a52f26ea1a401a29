package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyike/cortexdesk/config"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(maskSecrets(a.cfg), "", "  ")
			if err != nil {
				return err
			}
			if a.mgr != nil {
				fmt.Fprintln(a.out, mutedStyle.Render("# "+a.mgr.Path()))
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintln(a.out, errorStyle.Render("invalid configuration"))
				return err
			}
			for _, w := range configWarnings(a.cfg) {
				fmt.Fprintln(a.out, inProgressStyle.Render("warning: ")+w)
			}
			fmt.Fprintln(a.out, completedStyle.Render("configuration is valid"))
			return nil
		},
	})

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current configuration to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = filepath.Join(a.cfg.ProjectDir, "cortexdesk.json")
			}
			// an existing file is loaded, never overwritten
			mgr, err := config.NewManager(config.WithConfigPath(path), config.WithInitialConfig(a.cfg.WithoutSecrets()))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", completedStyle.Render("config at"), mgr.Path())
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "Where to write the file (default <project_dir>/cortexdesk.json)")
	configCmd.AddCommand(initCmd)

	return configCmd
}

func maskSecrets(cfg *config.Config) *config.Config {
	out := cfg.Clone()
	for _, s := range []*string{
		&out.OpenAIAPIKey, &out.DeepSeekAPIKey, &out.FinnhubAPIKey,
		&out.RedditSecret, &out.LongportAppSecret, &out.LongportAccessToken,
	} {
		*s = mask(*s)
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:3] + "****" + secret[len(secret)-4:]
}

func configWarnings(cfg *config.Config) []string {
	var out []string
	if cfg.APIKey() == "" && cfg.LLMProvider != "ollama" {
		out = append(out, fmt.Sprintf("no API key configured for provider %s", cfg.LLMProvider))
	}
	if cfg.OnlineTools && cfg.FinnhubAPIKey == "" {
		out = append(out, "FINNHUB_API_KEY not set, news and insider tools read local datasets only")
	}
	if cfg.LLMProvider == "deepseek" || cfg.OpenAIAPIKey == "" {
		out = append(out, "no embedding endpoint, memories use the local hashed embedder")
	}
	return out
}
