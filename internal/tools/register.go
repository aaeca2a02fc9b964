package tools

import (
	"advisor/internal/tools/calculator"
	"advisor/internal/tools/shared"
	"advisor/internal/tools/web"
	"advisor/pkg/logger"
)

// RegisterAllTools registers every catalog tool in the registry.
// Web tools are skipped when no web client is configured.
func RegisterAllTools(registry *Registry, deps shared.Deps) {
	log := deps.Log
	if log == nil {
		log = logger.Get()
	}
	log = log.With("component", "tool_registration")

	registry.Register(calculator.New(deps).Tool())

	if deps.HasWeb() {
		registry.Register(web.NewSearchTool(deps))
		registry.Register(web.NewScrapeTool(deps))
	} else {
		log.Warn("Web client not configured, search_tool and scrape_tool are unavailable")
	}

	log.Debugw("Registered tools", "tools", registry.List())
}
