package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/gateway"
	"github.com/hpungsan/recap/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store  *db.Handle
	gen    gateway.Generator
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *db.Handle, gen gateway.Generator, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, gen: gen, cfg: cfg, logger: logger}
}

// Request types for each tool

// SummaryGenerateRequest represents the arguments for summary_generate.
type SummaryGenerateRequest struct {
	Text string `json:"text"`
}

// SummaryListRequest represents the arguments for summary_list.
type SummaryListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// IDRequest represents the arguments for tools addressing one record by ID.
type IDRequest struct {
	ID int64 `json:"id"`
}

// SummaryStatsRequest represents the arguments for summary_stats.
type SummaryStatsRequest struct {
	Text string `json:"text"`
}

// InstructionSaveRequest represents the arguments for instruction_save.
type InstructionSaveRequest struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Activate bool   `json:"activate,omitempty"`
}

// database opens the store on first use so a broken data directory surfaces
// per call instead of killing the server.
func (h *Handlers) database(ctx context.Context) (*sql.DB, error) {
	return h.store.DB(ctx)
}

// Handler implementations

// HandleSummaryGenerate handles the summary_generate tool call.
func (h *Handlers) HandleSummaryGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryGenerateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Summarize(ctx, database, h.gen, h.cfg, h.logger, ops.SummarizeInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryList handles the summary_list tool call.
func (h *Handlers) HandleSummaryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListHistory(ctx, database, h.cfg, ops.ListHistoryInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryFetch handles the summary_fetch tool call.
func (h *Handlers) HandleSummaryFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.FetchSummary(ctx, database, ops.FetchSummaryInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryDelete handles the summary_delete tool call.
func (h *Handlers) HandleSummaryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteSummary(ctx, database, ops.DeleteSummaryInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryStats handles the summary_stats tool call. It never touches storage.
func (h *Handlers) HandleSummaryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryStatsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ops.Stats(ops.StatsInput{Text: input.Text}))
}

// HandleInstructionList handles the instruction_list tool call.
func (h *Handlers) HandleInstructionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListInstructions(ctx, database)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInstructionActive handles the instruction_active tool call.
func (h *Handlers) HandleInstructionActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ActiveInstruction(ctx, database)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInstructionSave handles the instruction_save tool call.
func (h *Handlers) HandleInstructionSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InstructionSaveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SaveInstruction(ctx, database, ops.SaveInstructionInput{
		ID:       input.ID,
		Name:     input.Name,
		Content:  input.Content,
		Activate: input.Activate,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInstructionActivate handles the instruction_activate tool call.
func (h *Handlers) HandleInstructionActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ActivateInstruction(ctx, database, ops.ActivateInstructionInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInstructionDelete handles the instruction_delete tool call.
func (h *Handlers) HandleInstructionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	database, err := h.database(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteInstruction(ctx, database, ops.DeleteInstructionInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var rErr *errors.RecapError
	if stderrors.As(err, &rErr) && rErr.Code != errors.ErrInternal {
		// Keep wrapper context such as "items[2]: " ahead of the message
		message := rErr.Message
		if err != error(rErr) {
			message = strings.TrimSuffix(err.Error(), rErr.Error()) + rErr.Message
		}
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": message,
			"status":  rErr.Status,
		}
		if rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
