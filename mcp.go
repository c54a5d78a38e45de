package formkeep

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/formkeep/internal/kit"
)

// RegisterMCP registers formkeep tools on an MCP server.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerSaveTool(srv)
	k.registerRestoreTool(srv)
	k.registerClearTool(srv)
	k.registerInspectTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type formIDRequest struct {
	FormID string `json:"form_id,omitempty"`
}

func decodeFormID(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r formIDRequest
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

var formIDSchema = inputSchema(map[string]any{
	"form_id": map[string]any{"type": "string", "description": "Form identity; omit to target all registered forms"},
}, nil)

func (k *Keeper) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formkeep_save",
		Description: "Persist one or all forms now, bypassing the debounce window.",
		InputSchema: formIDSchema,
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*formIDRequest)
		if err := k.Save(ctx, r.FormID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "saved"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeFormID)
}

func (k *Keeper) registerRestoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formkeep_restore",
		Description: "Decode persisted state onto one or all forms now. Stale or malformed entries are purged.",
		InputSchema: formIDSchema,
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*formIDRequest)
		if err := k.Restore(ctx, r.FormID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "restored"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeFormID)
}

func (k *Keeper) registerClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formkeep_clear",
		Description: "Remove persisted state for one or all forms.",
		InputSchema: formIDSchema,
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*formIDRequest)
		if err := k.Clear(ctx, r.FormID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cleared"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeFormID)
}

func (k *Keeper) registerInspectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formkeep_inspect",
		Description: "Return the current form registry and a summary of persisted state per form.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return k.Inspect(ctx)
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
