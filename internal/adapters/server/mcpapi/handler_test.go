package mcpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/therockpusher/taskweaver/internal/adapters/server/common"
	"github.com/therockpusher/taskweaver/internal/adapters/storage/sqlite"
	"github.com/therockpusher/taskweaver/internal/app"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "taskweaver-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts the MCP handler over an in-memory sqlite service.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}, func() time.Time { return time.Date(2026, 2, 21, 12, 0, n, 0, time.UTC) }, app.ServiceConfig{})

	handler, err := NewHandler(Config{}, common.NewAppServiceAdapter(svc, nil, nil))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// callTool posts one tools/call request and returns its result map.
func callTool(t *testing.T, server *httptest.Server, id int, name string, args map[string]any) map[string]any {
	t.Helper()
	resp, decoded := postJSONRPC(t, server.Client(), server.URL, callToolRequest(id, name, args))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s status = %d, want %d", name, resp.StatusCode, http.StatusOK)
	}
	if decoded.Result == nil {
		t.Fatalf("%s returned no result", name)
	}
	return decoded.Result
}

// TestHandlerRequiresService verifies construction fails closed without a service.
func TestHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	server := newTestServer(t)
	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersDependencyTools verifies tool discovery lists the full surface.
func TestHandlerRegistersDependencyTools(t *testing.T) {
	server := newTestServer(t)
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"taskweaver.create_task",
		"taskweaver.list_tasks",
		"taskweaver.get_task",
		"taskweaver.update_task",
		"taskweaver.mark_task_in_progress",
		"taskweaver.mark_task_completed",
		"taskweaver.mark_task_cancelled",
		"taskweaver.add_dependency",
		"taskweaver.remove_dependency",
		"taskweaver.get_blockers",
		"taskweaver.get_blocked",
		"taskweaver.list_open_tasks_dep_count",
		"taskweaver.effective_priority",
		"taskweaver.rank_open_tasks",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerDependencyWorkflow drives create, link, reject and query tools end to end.
func TestHandlerDependencyWorkflow(t *testing.T) {
	server := newTestServer(t)

	created := callTool(t, server, 10, "taskweaver.create_task", map[string]any{
		"title":        "blocker",
		"duration_min": 10,
		"value":        10,
	})
	if isErr, _ := created["isError"].(bool); isErr {
		t.Fatalf("create_task failed: %s", toolResultText(t, created))
	}
	if got := toolResultStructured(t, created)["id"]; got != "t1" {
		t.Fatalf("created id = %v, want t1", got)
	}
	callTool(t, server, 11, "taskweaver.create_task", map[string]any{
		"title":        "blocked",
		"duration_min": 10,
		"value":        90,
	})

	linked := callTool(t, server, 12, "taskweaver.add_dependency", map[string]any{"task_id": "t2", "blocker_id": "t1"})
	if isErr, _ := linked["isError"].(bool); isErr {
		t.Fatalf("add_dependency failed: %s", toolResultText(t, linked))
	}

	cycle := callTool(t, server, 13, "taskweaver.add_dependency", map[string]any{"task_id": "t1", "blocker_id": "t2"})
	if isErr, _ := cycle["isError"].(bool); !isErr {
		t.Fatalf("expected cycle rejection, got %#v", cycle)
	}
	if text := toolResultText(t, cycle); !strings.HasPrefix(text, "cycle_detected: ") || !strings.Contains(text, "t1 -> t2 -> t1") {
		t.Fatalf("unexpected cycle error text %q", text)
	}

	duplicate := callTool(t, server, 14, "taskweaver.add_dependency", map[string]any{"task_id": "t2", "blocker_id": "t1"})
	if text := toolResultText(t, duplicate); !strings.HasPrefix(text, "duplicate_edge: ") {
		t.Fatalf("unexpected duplicate error text %q", text)
	}

	priority := toolResultStructured(t, callTool(t, server, 15, "taskweaver.effective_priority", map[string]any{"task_id": "t1"}))
	if priority["effective_priority"] != float64(9) || priority["intrinsic_priority"] != float64(1) {
		t.Fatalf("unexpected priority %#v", priority)
	}

	blockers := toolResultStructured(t, callTool(t, server, 16, "taskweaver.get_blockers", map[string]any{"task_id": "t2"}))
	if items, _ := blockers["items"].([]any); len(items) != 1 {
		t.Fatalf("unexpected blockers %#v", blockers)
	}

	ranked := toolResultStructured(t, callTool(t, server, 17, "taskweaver.rank_open_tasks", map[string]any{}))
	items, _ := ranked["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("unexpected ranking %#v", ranked)
	}
	if first, _ := items[0].(map[string]any); first["id"] != "t1" || first["ready"] != true {
		t.Fatalf("unexpected first ranked task %#v", items[0])
	}

	done := callTool(t, server, 18, "taskweaver.mark_task_completed", map[string]any{"task_id": "t1"})
	if got := toolResultStructured(t, done)["status"]; got != "completed" {
		t.Fatalf("status = %v, want completed", got)
	}
	blockers = toolResultStructured(t, callTool(t, server, 19, "taskweaver.get_blockers", map[string]any{"task_id": "t2"}))
	if items, _ := blockers["items"].([]any); len(items) != 0 {
		t.Fatalf("expected no active blockers after completion, got %#v", blockers)
	}

	closed := callTool(t, server, 20, "taskweaver.add_dependency", map[string]any{"task_id": "t2", "blocker_id": "t1"})
	if text := toolResultText(t, closed); !strings.HasPrefix(text, "duplicate_edge: ") {
		t.Fatalf("unexpected error text for existing edge to closed blocker %q", text)
	}
	callTool(t, server, 21, "taskweaver.remove_dependency", map[string]any{"task_id": "t2", "blocker_id": "t1"})
	closed = callTool(t, server, 22, "taskweaver.add_dependency", map[string]any{"task_id": "t2", "blocker_id": "t1"})
	if text := toolResultText(t, closed); !strings.HasPrefix(text, "invalid_blocker_state: ") {
		t.Fatalf("unexpected closed blocker error text %q", text)
	}
}

// TestHandlerUpdateTaskKeepsOmittedFields verifies partial updates.
func TestHandlerUpdateTaskKeepsOmittedFields(t *testing.T) {
	server := newTestServer(t)
	callTool(t, server, 10, "taskweaver.create_task", map[string]any{
		"title":        "draft",
		"duration_min": 30,
		"value":        60,
		"description":  "first pass",
	})
	updated := toolResultStructured(t, callTool(t, server, 11, "taskweaver.update_task", map[string]any{
		"task_id": "t1",
		"value":   90,
	}))
	if updated["value"] != float64(90) || updated["duration_min"] != float64(30) || updated["description"] != "first pass" {
		t.Fatalf("unexpected update %#v", updated)
	}
	if updated["intrinsic_priority"] != float64(3) {
		t.Fatalf("intrinsic_priority = %v, want 3", updated["intrinsic_priority"])
	}
}

// TestHandlerToolErrors verifies error prefixes for missing tasks and bad input.
func TestHandlerToolErrors(t *testing.T) {
	server := newTestServer(t)

	missing := callTool(t, server, 10, "taskweaver.get_task", map[string]any{"task_id": "nope"})
	if text := toolResultText(t, missing); !strings.HasPrefix(text, "not_found: ") {
		t.Fatalf("unexpected missing-task text %q", text)
	}
	invalid := callTool(t, server, 11, "taskweaver.create_task", map[string]any{
		"title":        "bad",
		"duration_min": 0,
		"value":        10,
	})
	if text := toolResultText(t, invalid); !strings.HasPrefix(text, "invalid_request: ") {
		t.Fatalf("unexpected invalid text %q", text)
	}
	noArg := callTool(t, server, 12, "taskweaver.get_blocked", map[string]any{})
	if isErr, _ := noArg["isError"].(bool); !isErr {
		t.Fatalf("expected error for missing task_id, got %#v", noArg)
	}
}

// TestNormalizeConfig verifies defaults and endpoint cleanup.
func TestNormalizeConfig(t *testing.T) {
	got := normalizeConfig(Config{EndpointPath: " mcp/ "})
	if got.ServerName != "taskweaver" || got.ServerVersion != "dev" || got.EndpointPath != "/mcp" {
		t.Fatalf("unexpected config %#v", got)
	}
}
