package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/gateway"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"summary", "instruction"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"summary_generate": {
		def:     summaryGenerateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryGenerate },
	},
	"summary_list": {
		def:     summaryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryList },
	},
	"summary_fetch": {
		def:     summaryFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryFetch },
	},
	"summary_delete": {
		def:     summaryDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryDelete },
	},
	"summary_stats": {
		def:     summaryStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryStats },
	},
	"instruction_list": {
		def:     instructionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructionList },
	},
	"instruction_active": {
		def:     instructionActiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructionActive },
	},
	"instruction_save": {
		def:     instructionSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructionSave },
	},
	"instruction_activate": {
		def:     instructionActivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructionActivate },
	},
	"instruction_delete": {
		def:     instructionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructionDelete },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "summary_list" → "summary").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Recap tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(store *db.Handle, gen gateway.Generator, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"recap",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, gen, cfg, logger)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for _, name := range ValidateDisabledTypes(cfg.DisabledTypes) {
		logger.Warn("unknown type in disabled_types", zap.String("type", name))
	}
	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store *db.Handle, gen gateway.Generator, cfg *config.Config, logger *zap.Logger, version string) error {
	s := NewServer(store, gen, cfg, logger, version)
	return server.ServeStdio(s)
}
