package agents

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"

	"advisor/internal/adapters/ai"
	"advisor/internal/tools"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
	"advisor/pkg/templates"
)

const instructionTemplate = "agents/instruction"

// FactoryDeps gathers external dependencies needed to instantiate agents.
type FactoryDeps struct {
	Models    *ai.Models
	Tools     *tools.Registry
	Templates *templates.Registry
	Config    *CrewConfig
}

// Factory creates the crew's ADK agents from the YAML definitions.
type Factory struct {
	models    *ai.Models
	tools     *tools.Registry
	templates *templates.Registry
	cfg       *CrewConfig
	log       *logger.Logger
}

// NewFactory builds an agent factory with required dependencies.
func NewFactory(deps FactoryDeps) (*Factory, error) {
	if deps.Models == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "models are required")
	}
	if deps.Tools == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "tool registry is required")
	}
	if deps.Config == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "crew config is required")
	}
	if deps.Templates == nil {
		deps.Templates = templates.Get()
	}
	for _, id := range []string{instructionTemplate, kickoffTemplate} {
		if _, err := deps.Templates.GetTemplate(id); err != nil {
			return nil, err
		}
	}

	return &Factory{
		models:    deps.Models,
		tools:     deps.Tools,
		templates: deps.Templates,
		cfg:       deps.Config,
		log:       logger.Get().With("component", "agent_factory"),
	}, nil
}

// Tasks returns the task definitions in execution order.
func (f *Factory) Tasks() []TaskSpec {
	return f.cfg.Tasks
}

// ModelName returns the name of the model that runs a task, or "" if the tier is unknown.
func (f *Factory) ModelName(task TaskSpec) string {
	llm, err := f.models.For(f.cfg.Agent(task).LLM)
	if err != nil {
		return ""
	}
	return llm.Name()
}

type instructionData struct {
	Role           string
	Goal           string
	Backstory      string
	Task           string
	ExpectedOutput string
	Context        []string
	Tools          []string
}

// CreateAgent builds the LLM agent that performs one task as its assigned persona.
// The agent is named after the task so events can be attributed to it.
func (f *Factory) CreateAgent(task TaskSpec) (agent.Agent, error) {
	persona := f.cfg.Agent(task)

	llm, err := f.models.For(persona.LLM)
	if err != nil {
		return nil, errors.Wrapf(err, "model for %s", persona.Type)
	}

	toolNames := f.availableTools(persona)
	agentTools, err := f.tools.ADKTools(toolNames...)
	if err != nil {
		return nil, errors.Wrapf(err, "tools for %s", persona.Type)
	}

	instruction, err := f.templates.Render(instructionTemplate, instructionData{
		Role:           persona.Role,
		Goal:           persona.Goal,
		Backstory:      persona.Backstory,
		Task:           task.Description,
		ExpectedOutput: task.ExpectedOutput,
		Context:        task.Context,
		Tools:          toolNames,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render instruction for %s", task.Name)
	}

	return llmagent.New(llmagent.Config{
		Name:        task.Name,
		Description: persona.Role,
		Model:       llm,
		Tools:       agentTools,
		Instruction: instruction,
		OutputKey:   task.OutputKey,
	})
}

// availableTools drops tools that are not registered, e.g. web tools without a Tavily key.
func (f *Factory) availableTools(persona AgentSpec) []string {
	names := make([]string, 0, len(persona.Tools))
	for _, name := range persona.Tools {
		if _, ok := f.tools.Get(name); !ok {
			f.log.Warnw("Tool unavailable, agent runs without it", "agent", persona.Type, "tool", name)
			continue
		}
		names = append(names, name)
	}
	return names
}

// CreateCrew builds a fresh sequential workflow with one agent per task.
// ADK agents can only have one parent, so every run gets its own tree.
func (f *Factory) CreateCrew() (agent.Agent, error) {
	subAgents := make([]agent.Agent, 0, len(f.cfg.Tasks))
	for _, task := range f.cfg.Tasks {
		ag, err := f.CreateAgent(task)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create agent for %s", task.Name)
		}
		subAgents = append(subAgents, ag)
	}

	crew, err := sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        CrewName,
			Description: crewDescription,
			SubAgents:   subAgents,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sequential crew")
	}

	return crew, nil
}
