package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/llm"
	"github.com/soyeahso/storyforge/internal/store"
	"github.com/soyeahso/storyforge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show storyforge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "storyforge %s (commit %s)\n\n", version.Version, version.Short(version.Commit))

			// Show paths
			fmt.Fprintf(w, "Config:  %s\n", paths.Config)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(w, "Config:  not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(w, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(w, "Gateway: port=%d bind=%s tls=%v metrics=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled, cfg.Gateway.MetricsEnabled())

			c := cfg.Completion
			if c.HasCredential() {
				reg := llm.NewRegistryFromConfig(c, log)
				fmt.Fprintf(w, "Completion: provider=%s model=%s clients=%s\n",
					c.Provider, c.DefaultModel, strings.Join(reg.List(), ","))
			} else {
				fmt.Fprintln(w, "Completion: not configured (custom agents will fail; built-ins work)")
			}
			fmt.Fprintf(w, "Built-in agents: %d\n", len(agent.BuiltIns()))

			opts, err := storeOptions(cfg)
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), opts, log)
			if err != nil {
				fmt.Fprintf(w, "Store:   %s unreachable: %v\n", opts.Driver, err)
			} else {
				defer db.Close()
				resources, rerr := store.NewResourceStore(db).Count(cmd.Context())
				agents, aerr := store.NewAgentStore(db).Count(cmd.Context())
				if rerr != nil || aerr != nil {
					fmt.Fprintf(w, "Store:   %s (counts unavailable)\n", db.Driver())
				} else {
					fmt.Fprintf(w, "Store:   %s resources=%d agents=%d\n", db.Driver(), resources, agents)
				}
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
