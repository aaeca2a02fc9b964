package agents

import (
	"embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"advisor/internal/adapters/ai"
	"advisor/internal/guardrail"
	"advisor/pkg/errors"
)

//go:embed assets/*.yaml
var assets embed.FS

const defaultSearchMaxResults = 5

// AgentSpec is one persona from agents.yaml.
type AgentSpec struct {
	Type      AgentType `yaml:"-"`
	Role      string    `yaml:"role"`
	Goal      string    `yaml:"goal"`
	Backstory string    `yaml:"backstory"`
	LLM       ai.Tier   `yaml:"llm"`
	Tools     []string  `yaml:"tools"`
}

// TaskSpec is one step from tasks.yaml. Context lists output keys of earlier tasks.
type TaskSpec struct {
	Name           string    `yaml:"-"`
	Description    string    `yaml:"description"`
	ExpectedOutput string    `yaml:"expected_output"`
	Agent          AgentType `yaml:"agent"`
	OutputKey      string    `yaml:"output_key"`
	Context        []string  `yaml:"context"`
}

// Params is params.yaml.
type Params struct {
	Guardrails guardrail.Config `yaml:"guardrails"`
	Tools      ToolParams       `yaml:"tools"`
}

// ToolParams holds per-tool settings.
type ToolParams struct {
	TavilySearchTool struct {
		MaxResults int `yaml:"max_results"`
	} `yaml:"tavily_search_tool"`
}

// SearchMaxResults returns the configured result count for search_tool, defaulting to 5.
func (p Params) SearchMaxResults() int {
	if n := p.Tools.TavilySearchTool.MaxResults; n > 0 {
		return n
	}
	return defaultSearchMaxResults
}

// CrewConfig is the full crew definition. Tasks keep their declaration order.
type CrewConfig struct {
	Agents map[AgentType]AgentSpec
	Tasks  []TaskSpec
	Params Params
}

// LoadCrewConfig reads the embedded agents and tasks. params.yaml is read from
// paramsPath when set, from the embedded copy otherwise.
func LoadCrewConfig(paramsPath string) (*CrewConfig, error) {
	agentsRaw, err := assets.ReadFile("assets/agents.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "read agents.yaml")
	}
	tasksRaw, err := assets.ReadFile("assets/tasks.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "read tasks.yaml")
	}

	params, err := LoadParams(paramsPath)
	if err != nil {
		return nil, err
	}

	return ParseCrewConfig(agentsRaw, tasksRaw, params)
}

// LoadParams reads params.yaml from path, or the embedded copy when path is empty.
func LoadParams(path string) (Params, error) {
	var (
		raw []byte
		err error
	)
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = assets.ReadFile("assets/params.yaml")
	}
	if err != nil {
		return Params{}, errors.Wrapf(err, "read params %q", path)
	}

	var params Params
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return Params{}, errors.Wrapf(errors.Join(errors.ErrInvalidInput, err), "parse params %q", path)
	}
	return params, nil
}

// ParseCrewConfig decodes agents and tasks documents and validates the result.
func ParseCrewConfig(agentsRaw, tasksRaw []byte, params Params) (*CrewConfig, error) {
	agentNames, agentSpecs, err := decodeOrdered[AgentSpec](agentsRaw)
	if err != nil {
		return nil, errors.Wrap(err, "parse agents.yaml")
	}
	taskNames, taskSpecs, err := decodeOrdered[TaskSpec](tasksRaw)
	if err != nil {
		return nil, errors.Wrap(err, "parse tasks.yaml")
	}

	cfg := &CrewConfig{
		Agents: make(map[AgentType]AgentSpec, len(agentNames)),
		Tasks:  make([]TaskSpec, 0, len(taskNames)),
		Params: params,
	}
	for i, name := range agentNames {
		spec := agentSpecs[i]
		spec.Type = AgentType(name)
		cfg.Agents[spec.Type] = spec
	}
	for i, name := range taskNames {
		spec := taskSpecs[i]
		spec.Name = name
		cfg.Tasks = append(cfg.Tasks, spec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross references between agents and tasks.
func (c *CrewConfig) Validate() error {
	if len(c.Tasks) == 0 {
		return errors.NewValidationError("tasks", "at least one task is required", nil)
	}

	for name, spec := range c.Agents {
		if strings.TrimSpace(spec.Role) == "" {
			return errors.NewValidationError("agents."+string(name)+".role", "must not be empty", spec.Role)
		}
		if !spec.LLM.IsValid() {
			return errors.NewValidationError("agents."+string(name)+".llm", "must be pro or flash", spec.LLM)
		}
	}

	produced := make(map[string]bool, len(c.Tasks))
	for _, task := range c.Tasks {
		if _, ok := c.Agents[task.Agent]; !ok {
			return errors.NewValidationError("tasks."+task.Name+".agent", "unknown agent", task.Agent)
		}
		if task.OutputKey == "" {
			return errors.NewValidationError("tasks."+task.Name+".output_key", "must not be empty", task.OutputKey)
		}
		if produced[task.OutputKey] {
			return errors.NewValidationError("tasks."+task.Name+".output_key", "duplicate output key", task.OutputKey)
		}
		for _, key := range task.Context {
			if !produced[key] {
				return errors.NewValidationError("tasks."+task.Name+".context", "must reference an earlier task output", key)
			}
		}
		produced[task.OutputKey] = true
	}
	return nil
}

// Agent returns the persona assigned to a task.
func (c *CrewConfig) Agent(task TaskSpec) AgentSpec {
	return c.Agents[task.Agent]
}

// decodeOrdered decodes a top-level YAML mapping, keeping key order.
func decodeOrdered[T any](raw []byte) ([]string, []T, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, nil, errors.Join(errors.ErrInvalidInput, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "empty document")
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "top level must be a mapping")
	}

	names := make([]string, 0, len(mapping.Content)/2)
	values := make([]T, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		var v T
		if err := mapping.Content[i+1].Decode(&v); err != nil {
			return nil, nil, errors.Wrapf(errors.Join(errors.ErrInvalidInput, err), "entry %s", name)
		}
		names = append(names, name)
		values = append(values, v)
	}
	return names, values, nil
}
