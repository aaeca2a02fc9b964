package tools

import (
	"advisor/internal/tools/calculator"
	"advisor/internal/tools/web"
)

// Definition describes a tool's metadata for registration and documentation.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Category    string
}

var toolDefinitions = []Definition{
	{Name: calculator.Name, DisplayName: calculator.DisplayName, Description: calculator.Description, Category: "math"},
	{Name: web.SearchName, DisplayName: "Tavily search tool", Description: web.SearchDescription, Category: "web"},
	{Name: web.ScrapeName, DisplayName: "Tavily extractor tool", Description: web.ScrapeDescription, Category: "web"},
}

// Definitions returns a copy of the tool catalog.
func Definitions() []Definition {
	out := make([]Definition, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}

// LookupDefinition finds a catalog entry by function name or display name.
func LookupDefinition(name string) (Definition, bool) {
	for _, d := range toolDefinitions {
		if d.Name == name || d.DisplayName == name {
			return d, true
		}
	}
	return Definition{}, false
}
