package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/workflow"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		agentIDs    []string
		resourceIDs []string
		input       string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "run [input...]",
		Short: "Run agents one after another, feeding each output into the next",
		Long: "run executes the given agents in order. The first step receives the input plus the\n" +
			"selected resources; every later step receives the previous output plus the resources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = strings.Join(args, " ")
			}
			if strings.TrimSpace(input) == "" && len(resourceIDs) == 0 {
				return domain.MissingField("input")
			}
			if len(agentIDs) == 0 {
				return domain.MissingField("agent")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			e := workflow.NewEngine(uuid.New().String(), a.runner, workflow.Options{}, log)
			e.SetInput(input)
			for _, id := range resourceIDs {
				r, err := a.library.Get(ctx, id)
				if err != nil {
					return err
				}
				e.SelectResource(r)
			}

			steps, err := chain(ctx, e, a.runner, agentIDs)
			errOut := cmd.ErrOrStderr()
			if verbose {
				for i, s := range steps {
					fmt.Fprintf(errOut, "[step %d] %s %s (%s)\n", i+1, s.Agent.Icon, s.Agent.Name, s.Status)
					for _, line := range s.Logs {
						fmt.Fprintf(errOut, "  %s\n", line)
					}
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), steps[len(steps)-1].Output)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&agentIDs, "agent", "a", nil, "agent id to run; repeat to chain agents")
	cmd.Flags().StringArrayVarP(&resourceIDs, "resource", "r", nil, "resource id to attach; repeatable")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input text (default: the positional arguments)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each step and its logs to stderr")

	return cmd
}

// agentResolver looks up agents by id.
type agentResolver interface {
	Resolve(ctx context.Context, id string) (domain.AgentRef, error)
}

// chain runs each agent in order on e. It stops at the first failed step and
// returns the steps run so far.
func chain(ctx context.Context, e *workflow.Engine, agents agentResolver, ids []string) ([]domain.WorkflowStep, error) {
	steps := make([]domain.WorkflowStep, 0, len(ids))
	for _, id := range ids {
		ref, err := agents.Resolve(ctx, id)
		if err != nil {
			return steps, err
		}
		if !e.SelectAgent(ref) {
			return steps, workflow.ErrStepRunning
		}
		step, err := e.Run(ctx)
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
		if step.Status == domain.StepError {
			return steps, errors.New(strings.TrimPrefix(step.Output, "Error: "))
		}
	}
	return steps, nil
}
