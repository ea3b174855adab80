package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/gateway"
)

const sampleChat = `Refactor session cache
User: the cache never evicts expired sessions
Assistant: add a sweep goroutine keyed on expiry`

// testSetup creates a temporary store, a canned generator and config for testing.
func testSetup(t *testing.T) (*Handlers, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	logger := zaptest.NewLogger(t)
	store := db.NewHandle(t.TempDir(), cfg, logger)
	t.Cleanup(func() { store.Close() })

	gen := gateway.Func(func(_ context.Context, text, _ string) (*gateway.Result, error) {
		return &gateway.Result{
			Narrative: fmt.Sprintf("We reviewed %d characters of chat.", len(text)),
			Technical: "- Goal: evict expired sessions",
		}, nil
	})

	return NewHandlers(store, gen, cfg, logger), cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// generate stores one summary through the handler and returns its ID.
func generate(t *testing.T, h *Handlers, text string) int64 {
	t.Helper()
	result, err := h.HandleSummaryGenerate(context.Background(), makeRequest(map[string]any{"text": text}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["saved"] != true {
		t.Fatalf("expected saved=true, got %v", output["saved"])
	}
	sum := output["summary"].(map[string]any)
	return int64(sum["id"].(float64))
}

func TestHandleSummaryGenerate(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "generate from chat",
			args:      map[string]any{"text": sampleChat},
			wantError: false,
		},
		{
			name:      "missing text",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "whitespace text",
			args:      map[string]any{"text": "  \n\t "},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "text of the wrong type",
			args:      map[string]any{"text": 42},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSummaryGenerate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleSummaryGenerate_OutputShape(t *testing.T) {
	h, _ := testSetup(t)

	result, err := h.HandleSummaryGenerate(context.Background(), makeRequest(map[string]any{"text": sampleChat}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if id, _ := output["request_id"].(string); len(id) != 26 {
		t.Errorf("request_id = %q, want a 26-char ULID", id)
	}
	if output["instruction"] == "" {
		t.Error("expected the instruction name to be reported")
	}

	sum := output["summary"].(map[string]any)
	if sum["title"] != "Refactor session cache" {
		t.Errorf("title = %v, want first line of chat", sum["title"])
	}
	if sum["original_text"] != sampleChat {
		t.Error("original_text should round-trip unchanged")
	}
	if !strings.Contains(sum["narrative"].(string), "characters of chat") {
		t.Errorf("unexpected narrative: %v", sum["narrative"])
	}
}

func TestHandleSummaryGenerate_GenerationFailureWritesNothing(t *testing.T) {
	h, _ := testSetup(t)
	h.gen = gateway.Func(func(context.Context, string, string) (*gateway.Result, error) {
		return nil, errors.NewGenerationFailure("upstream unavailable", nil)
	})
	ctx := context.Background()

	result, err := h.HandleSummaryGenerate(ctx, makeRequest(map[string]any{"text": sampleChat}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "GENERATION_FAILURE")

	list, err := h.HandleSummaryList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, list)
	if items := output["items"].([]any); len(items) != 0 {
		t.Errorf("expected no saved summaries, got %d", len(items))
	}
}

func TestHandleSummaryList(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, generate(t, h, fmt.Sprintf("Chat %d\nsome content", i)))
	}

	result, err := h.HandleSummaryList(ctx, makeRequest(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	items := output["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	first := items[0].(map[string]any)
	if int64(first["id"].(float64)) != ids[2] {
		t.Errorf("first item id = %v, want most recent %d", first["id"], ids[2])
	}
	if _, ok := first["original_text"]; ok {
		t.Error("list items should not carry the original text")
	}

	pagination := output["pagination"].(map[string]any)
	if pagination["has_more"] != true {
		t.Error("expected has_more=true")
	}
	if pagination["total"] != float64(3) {
		t.Errorf("total = %v, want 3", pagination["total"])
	}
	if output["sort"] != "created_at_desc" {
		t.Errorf("sort = %v", output["sort"])
	}

	result, err = h.HandleSummaryList(ctx, makeRequest(map[string]any{"limit": 2, "offset": 2}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if items := output["items"].([]any); len(items) != 1 {
		t.Errorf("second page items = %d, want 1", len(items))
	}
}

func TestHandleSummaryFetch(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	id := generate(t, h, sampleChat)

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "fetch existing",
			args:      map[string]any{"id": id},
			wantError: false,
		},
		{
			name:      "fetch missing",
			args:      map[string]any{"id": id + 100},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "fetch without id",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "fetch with string id",
			args:      map[string]any{"id": "abc"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSummaryFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			output := parseOutput(t, result)
			if output["original_text"] != sampleChat {
				t.Error("expected full original text")
			}
		})
	}
}

func TestHandleSummaryDelete(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	id := generate(t, h, sampleChat)

	result, err := h.HandleSummaryDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["deleted"] != true {
		t.Errorf("deleted = %v, want true", output["deleted"])
	}

	// Deleting again succeeds and reports nothing removed
	result, err = h.HandleSummaryDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["deleted"] != false {
		t.Errorf("deleted = %v, want false", output["deleted"])
	}

	result, err = h.HandleSummaryFetch(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleSummaryStats(t *testing.T) {
	h, _ := testSetup(t)

	result, err := h.HandleSummaryStats(context.Background(), makeRequest(map[string]any{"text": "one two three"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["word_count"] != float64(3) {
		t.Errorf("word_count = %v, want 3", output["word_count"])
	}
	if output["char_count"] != float64(13) {
		t.Errorf("char_count = %v, want 13", output["char_count"])
	}
}

func TestHandleInstructions(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	// Fresh store carries the seeded default, active
	result, err := h.HandleInstructionActive(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	active := parseOutput(t, result)
	if active["is_default"] != true || active["is_active"] != true {
		t.Fatalf("expected active default instruction, got %v", active)
	}
	defaultID := int64(active["id"].(float64))

	result, err = h.HandleInstructionSave(ctx, makeRequest(map[string]any{
		"name":     "Terse",
		"content":  "Summarize in five bullets.",
		"activate": true,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	saved := parseOutput(t, result)
	if saved["created"] != true {
		t.Errorf("created = %v, want true", saved["created"])
	}
	terse := saved["instruction"].(map[string]any)
	terseID := int64(terse["id"].(float64))

	result, err = h.HandleInstructionList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	list := parseOutput(t, result)
	if len(list["items"].([]any)) != 2 {
		t.Errorf("items = %d, want 2", len(list["items"].([]any)))
	}
	if int64(list["active_id"].(float64)) != terseID {
		t.Errorf("active_id = %v, want %d", list["active_id"], terseID)
	}

	// Edit keeps the record and its active flag
	result, err = h.HandleInstructionSave(ctx, makeRequest(map[string]any{
		"id":      terseID,
		"name":    "Terse v2",
		"content": "Summarize in three bullets.",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	saved = parseOutput(t, result)
	edited := saved["instruction"].(map[string]any)
	if edited["name"] != "Terse v2" || edited["is_active"] != true {
		t.Errorf("unexpected edit result: %v", edited)
	}

	result, err = h.HandleInstructionActivate(ctx, makeRequest(map[string]any{"id": defaultID}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	activated := parseOutput(t, result)
	if activated["is_active"] != true {
		t.Error("expected activated instruction to be active")
	}

	result, err = h.HandleInstructionDelete(ctx, makeRequest(map[string]any{"id": defaultID}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "PROTECTED_RECORD")

	result, err = h.HandleInstructionDelete(ctx, makeRequest(map[string]any{"id": terseID}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	deleted := parseOutput(t, result)
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}

	result, err = h.HandleInstructionActivate(ctx, makeRequest(map[string]any{"id": terseID}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleInstructionSave_Validation(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing name", args: map[string]any{"content": "text"}},
		{name: "missing content", args: map[string]any{"name": "n"}},
		{name: "blank name", args: map[string]any{"name": "   ", "content": "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleInstructionSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			assertErrorCode(t, result, "INVALID_REQUEST")
		})
	}
}

func TestHandlers_StorageUnavailable(t *testing.T) {
	// A regular file where the data directory should be makes every open fail
	base := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(base, []byte("x"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := config.DefaultConfig()
	store := db.NewHandle(base, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { store.Close() })
	h := NewHandlers(store, nil, cfg, nil)

	result, err := h.HandleSummaryList(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "STORAGE_UNAVAILABLE")

	// Stats does not need storage
	result, err = h.HandleSummaryStats(context.Background(), makeRequest(map[string]any{"text": "still works"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Errorf("expected success, got error: %v", extractErrorMessage(result))
	}
}

func TestServerRegistration(t *testing.T) {
	h, cfg := testSetup(t)

	s := NewServer(h.store, h.gen, cfg, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"summary_generate",
		"summary_list",
		"summary_fetch",
		"summary_delete",
		"summary_stats",
		"instruction_list",
		"instruction_active",
		"instruction_save",
		"instruction_activate",
		"instruction_delete",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = []string{"summary_delete", "instruction_delete"}
	s := NewServer(h.store, h.gen, cfg, nil, "test")
	tools := s.ListTools()

	if len(tools) != 8 {
		t.Errorf("registered tool count = %d, want 8", len(tools))
	}

	for _, name := range []string{"summary_delete", "instruction_delete"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"summary_generate", "summary_list", "instruction_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"instruction"}
	s := NewServer(h.store, h.gen, cfg, nil, "test")
	tools := s.ListTools()

	if len(tools) != 5 {
		t.Errorf("registered tool count = %d, want 5", len(tools))
	}
	for name := range tools {
		if GetTypeForTool(name) != "summary" {
			t.Errorf("tool %q should have been disabled with its type", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(h.store, h.gen, cfg, nil, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestServerRegistration_DuplicateDisabled(t *testing.T) {
	h, cfg := testSetup(t)

	// Duplicates should be handled gracefully (map lookup)
	cfg.DisabledTools = []string{"summary_delete", "summary_delete", "summary_delete"}
	s := NewServer(h.store, h.gen, cfg, nil, "test")
	tools := s.ListTools()

	if len(tools) != 9 {
		t.Errorf("registered tool count = %d, want 9", len(tools))
	}

	if _, ok := tools["summary_delete"]; ok {
		t.Error("disabled tool 'summary_delete' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"summary_delete", "instruction_delete"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"summary_delete", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	unknown := ValidateDisabledTypes([]string{"summary", "history", "instruction"})
	if len(unknown) != 1 || unknown[0] != "history" {
		t.Errorf("ValidateDisabledTypes() = %v, want [history]", unknown)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := map[string]string{
		"summary_generate":   "summary",
		"instruction_active": "instruction",
		"noprefix":           "",
		"_leading":           "",
	}
	for input, want := range tests {
		if got := GetTypeForTool(input); got != want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExpandTypesToTools(t *testing.T) {
	if tools := ExpandTypesToTools(nil); tools != nil {
		t.Errorf("expected nil for no types, got %v", tools)
	}
	if tools := ExpandTypesToTools([]string{"summary"}); len(tools) != 5 {
		t.Errorf("summary expands to %d tools, want 5", len(tools))
	}
	if tools := ExpandTypesToTools([]string{"unknown"}); len(tools) != 0 {
		t.Errorf("unknown type expands to %v, want none", tools)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 10 {
		t.Errorf("AllToolNames() returned %d names, want 10", len(names))
	}

	// All returned names should be valid
	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Fatal("expected INTERNAL message to hide the cause")
	}
}

func TestErrorResult_ForeignErrorIsInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("summary 7: %w", errors.NewNotFound("summary", 7))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}

	msg := errObj["message"].(string)
	if !strings.HasPrefix(msg, "summary 7: ") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
	if strings.Contains(msg, "NOT_FOUND") {
		t.Errorf("message should not repeat the code, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewProtectedRecord(1))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrProtectedRecord) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrProtectedRecord)
	}
	if errObj["status"] != float64(403) {
		t.Fatalf("status=%v, want 403", errObj["status"])
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

// errorObject returns the "error" object of an error result.
func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result with code %q, got success", expectedCode)
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
