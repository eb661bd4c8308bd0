package ctl

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the captionctl command tree from environment defaults.
func NewRootCmd() *cobra.Command {
	cfg := ConfigFromEnv()
	return buildRootCmdWith(&cfg)
}

func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "captionctl",
		Short:         "Client for the captiond image captioning service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.URL, "url", cfg.URL, "captiond base URL (defaults CAPTIOND_URL or "+DefaultURL+")")
	root.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Service token (defaults SERVICE_TOKEN or "+DefaultToken+")")
	root.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-file request timeout")

	analyze := &cobra.Command{
		Use:     "analyze <image>...",
		Short:   "Caption one or more images, printing one JSON line per file",
		Example: "  captionctl analyze dog.jpg cat.png\n  captionctl --url http://ml:8001 analyze -p 4 photos/*.jpg",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Analyze(cmd.Context(), *cfg, args, cmd.OutOrStdout())
		},
	}
	analyze.Flags().IntVarP(&cfg.Parallel, "parallel", "p", cfg.Parallel, "Concurrent uploads")
	root.AddCommand(analyze)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}
