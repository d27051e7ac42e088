package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agent",
		Aliases: []string{"agents"},
		Short:   "Manage agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentBuiltinCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentUpdateCmd())
	cmd.AddCommand(newAgentDeleteCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom agents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.agents.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "  (no custom agents)")
				return nil
			}
			for _, ag := range list {
				fmt.Fprintf(w, "  %-36s  %-12s  %s  model=%s\n", ag.ID, ag.Category, ag.Name, ag.Model)
			}
			return nil
		},
	}
}

func newAgentBuiltinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "builtin",
		Short: "List the built-in agents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, b := range agent.BuiltIns() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-8s  %s %s\n", b.ID, b.Icon, b.Name)
			}
		},
	}
}

func newAgentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show details about a custom or built-in agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if b, ok := agent.LookupBuiltIn(args[0]); ok {
				fmt.Fprintf(w, "Agent: %s (%s, built-in)\n", b.ID, b.Name)
				fmt.Fprintf(w, "  %s\n", b.Description)
				return nil
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ag, err := a.agents.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAgent(w, ag)
			return nil
		},
	}
}

// agentFlags are the editable agent fields shared by create and update.
type agentFlags struct {
	name, description, icon, category, color string
	systemPrompt, systemPromptFile, model    string
	temperature                              float64
	maxTokens                                int
}

func (f *agentFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "agent name")
	fs.StringVar(&f.description, "description", "", "what the agent does")
	fs.StringVar(&f.icon, "icon", "", "display icon")
	fs.StringVar(&f.category, "category", "", "analysis, validation, generation, or optimization")
	fs.StringVar(&f.color, "color", "", "display color (default: the category's color)")
	fs.StringVar(&f.systemPrompt, "system-prompt", "", "system prompt sent with every run")
	fs.StringVar(&f.systemPromptFile, "system-prompt-file", "", "read the system prompt from a file")
	fs.StringVar(&f.model, "model", "", "completion model id")
	fs.Float64Var(&f.temperature, "temperature", 0.7, "sampling temperature (0-2)")
	fs.IntVar(&f.maxTokens, "max-tokens", 1000, "completion token limit")
}

// resolvePrompt loads --system-prompt-file into systemPrompt.
func (f *agentFlags) resolvePrompt(fs *pflag.FlagSet) error {
	if !fs.Changed("system-prompt-file") {
		return nil
	}
	if fs.Changed("system-prompt") {
		return errors.New("use either --system-prompt or --system-prompt-file")
	}
	data, err := os.ReadFile(f.systemPromptFile)
	if err != nil {
		return err
	}
	f.systemPrompt = string(data)
	return nil
}

// patch returns the fields whose flags were set.
func (f *agentFlags) patch(fs *pflag.FlagSet) store.AgentPatch {
	p := store.AgentPatch{}
	text := map[string]struct {
		flag  string
		value string
	}{
		"name":         {"name", f.name},
		"description":  {"description", f.description},
		"icon":         {"icon", f.icon},
		"category":     {"category", f.category},
		"color":        {"color", f.color},
		"systemPrompt": {"system-prompt", f.systemPrompt},
		"model":        {"model", f.model},
	}
	for field, v := range text {
		if fs.Changed(v.flag) {
			p[field] = v.value
		}
	}
	if fs.Changed("system-prompt-file") {
		p["systemPrompt"] = f.systemPrompt
	}
	if fs.Changed("temperature") {
		p["temperature"] = f.temperature
	}
	if fs.Changed("max-tokens") {
		p["maxTokens"] = f.maxTokens
	}
	return p
}

func newAgentCreateCmd() *cobra.Command {
	var f agentFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if err := f.resolvePrompt(fs); err != nil {
				return err
			}

			category := domain.Category(f.category)
			color := f.color
			if !fs.Changed("color") {
				color = category.Color()
			}

			in := store.NewAgent{
				Name:         f.name,
				Description:  f.description,
				Icon:         f.icon,
				Category:     category,
				Color:        color,
				SystemPrompt: f.systemPrompt,
				Model:        f.model,
			}
			if fs.Changed("temperature") {
				in.Temperature = &f.temperature
			}
			if fs.Changed("max-tokens") {
				in.MaxTokens = &f.maxTokens
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ag, err := a.agents.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", ag.Name, ag.ID)
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func newAgentUpdateCmd() *cobra.Command {
	var f agentFlags

	cmd := &cobra.Command{
		Use:   "update <agent-id>",
		Short: "Change fields of a custom agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if err := f.resolvePrompt(fs); err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ag, err := a.agents.Update(cmd.Context(), args[0], f.patch(fs))
			if err != nil {
				return err
			}
			printAgent(cmd.OutOrStdout(), ag)
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func newAgentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete a custom agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.agents.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Agent deleted successfully")
			return nil
		},
	}
}

func printAgent(w io.Writer, ag domain.CustomAgent) {
	fmt.Fprintf(w, "Agent: %s (%s)\n", ag.ID, ag.Name)
	fmt.Fprintf(w, "  Category:  %s\n", ag.Category)
	fmt.Fprintf(w, "  Color:     %s\n", ag.Color)
	fmt.Fprintf(w, "  Model:     %s\n", ag.Model)
	fmt.Fprintf(w, "  Temp:      %.2f\n", ag.Temperature)
	fmt.Fprintf(w, "  MaxTokens: %d\n", ag.MaxTokens)
	fmt.Fprintf(w, "  About:     %s\n", ag.Description)
	fmt.Fprintf(w, "  Prompt:    %s\n", ag.SystemPrompt)
}
