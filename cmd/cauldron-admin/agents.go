// ABOUTME: Agent lifecycle commands: deploy, stop, and agents (list)
// ABOUTME: Deploy reads an optional YAML/JSON agent file and API keys from the environment

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
)

// agentFile is the on-disk agent definition accepted by deploy --file.
type agentFile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Instruction string   `yaml:"instruction"`
	Model       string   `yaml:"model"`
	Template    string   `yaml:"template"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Tools       []string `yaml:"tools"`
}

func loadAgentFile(path string) (orchestrator.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.AgentConfig{}, fmt.Errorf("reading agent file: %w", err)
	}
	// yaml.v3 also accepts JSON documents.
	var f agentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return orchestrator.AgentConfig{}, fmt.Errorf("parsing agent file: %w", err)
	}
	return orchestrator.AgentConfig(f), nil
}

// credentialsFromEnv collects the API keys handed to deployed agents.
func credentialsFromEnv() orchestrator.Credentials {
	return orchestrator.Credentials{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:  os.Getenv("GOOGLE_API_KEY"),
		WeatherAPIKey: os.Getenv("WEATHER_API_KEY"),
	}
}

func newDeployCommand(a *app) *cobra.Command {
	var (
		agentID     string
		file        string
		cfg         orchestrator.AgentConfig
		temperature float64
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an agent and open its first session",
		Long: `Deploy an agent to the cluster. Flags override fields from --file.

API keys are read from OPENAI_API_KEY, GOOGLE_API_KEY and WEATHER_API_KEY.`,
		Example: `  cauldron-admin deploy --user u1 --agent-id 42 --file agent.yaml
  cauldron-admin deploy --user u1 --agent-id 42 --name calc --instruction "You do arithmetic."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}

			agent := orchestrator.AgentConfig{}
			if file != "" {
				loaded, err := loadAgentFile(file)
				if err != nil {
					return err
				}
				agent = loaded
			}
			mergeAgentFlags(cmd, &agent, cfg)
			if cmd.Flags().Changed("temperature") {
				agent.Temperature = &temperature
			}
			if agent.Name == "" {
				return fmt.Errorf("agent name is required (--name or name: in --file)")
			}

			req := orchestrator.DeployRequest{
				UserID:      a.userID,
				UserUUID:    a.userUUID,
				AgentID:     agentID,
				AgentConfig: agent,
				Credentials: credentialsFromEnv(),
				Overwrite:   overwrite,
			}

			var env *envelope.Envelope
			err := a.withSpinner(cmd.Context(), "Deploying "+agent.Name+"...", func(ctx context.Context) error {
				var err error
				env, err = a.client.Deploy(ctx, req)
				return err
			})
			if err != nil {
				return err
			}
			return a.printEnvelope(cmd.OutOrStdout(), env)
		},
	}

	f := cmd.Flags()
	f.StringVar(&agentID, "agent-id", "", "Agent id")
	f.StringVarP(&file, "file", "f", "", "Agent definition (YAML or JSON)")
	f.StringVar(&cfg.Name, "name", "", "Agent name")
	f.StringVar(&cfg.Description, "description", "", "Agent description")
	f.StringVar(&cfg.Instruction, "instruction", "", "System instruction")
	f.StringVar(&cfg.Model, "model", "", "Model (default "+orchestrator.DefaultModel+")")
	f.StringVar(&cfg.Template, "template", "", "Agent template (default "+orchestrator.DefaultTemplate+")")
	f.IntVar(&cfg.MaxTokens, "max-tokens", 0, "Max output tokens")
	f.Float64Var(&temperature, "temperature", orchestrator.DefaultTemperature, "Sampling temperature")
	f.StringSliceVar(&cfg.Tools, "tool", nil, "Tool to enable (repeatable)")
	f.BoolVar(&overwrite, "overwrite", false, "Replace an existing deployment")
	return cmd
}

// mergeAgentFlags copies explicitly set flags over the file values.
func mergeAgentFlags(cmd *cobra.Command, dst *orchestrator.AgentConfig, flags orchestrator.AgentConfig) {
	changed := cmd.Flags().Changed
	if changed("name") {
		dst.Name = flags.Name
	}
	if changed("description") {
		dst.Description = flags.Description
	}
	if changed("instruction") {
		dst.Instruction = flags.Instruction
	}
	if changed("model") {
		dst.Model = flags.Model
	}
	if changed("template") {
		dst.Template = flags.Template
	}
	if changed("max-tokens") {
		dst.MaxTokens = flags.MaxTokens
	}
	if changed("tool") {
		dst.Tools = flags.Tools
	}
}

func newStopCommand(a *app) *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:     "stop <agent-name>",
		Short:   "Stop a deployed agent",
		Example: "  cauldron-admin stop calc --user u1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}

			req := orchestrator.AgentRequest{
				UserID:    a.userID,
				UserUUID:  a.userUUID,
				AgentID:   agentID,
				AgentName: args[0],
			}
			var env *envelope.Envelope
			err := a.withSpinner(cmd.Context(), "Stopping "+args[0]+"...", func(ctx context.Context) error {
				var err error
				env, err = a.client.Stop(ctx, req)
				return err
			})
			if err != nil {
				return err
			}
			return a.printEnvelope(cmd.OutOrStdout(), env)
		},
	}

	cmd.Flags().StringVar(&agentID, "agent-id", "", "Agent id")
	return cmd
}

func newAgentsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "agents",
		Short:   "List the user's deployed agents",
		Example: "  cauldron-admin agents --user u1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}

			raw, err := a.client.ListAgents(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			return printRawJSON(cmd.OutOrStdout(), raw)
		},
	}
}
