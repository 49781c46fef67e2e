// Package mcp implements the Model Context Protocol surface: a JSON-RPC
// 2.0 dispatcher serving one persistent websocket connection per session.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/prompts"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/runtime"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/tools"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/jsonrpc"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
)

const (
	// ProtocolVersion is the MCP revision this server speaks.
	ProtocolVersion = "2024-11-05"
	// ProgressMethod is the reserved notification method for background
	// analysis phase updates.
	ProgressMethod = "analysis/progress"
	// ResourcePrefix is the URI scheme for stored artifacts.
	ResourcePrefix = "phr://resource/"

	jsonMIME = "application/json"
)

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// capabilities are fixed: static tool and prompt catalogs, a resource
// list that changes as analyses are saved, no subscriptions.
var capabilities = map[string]any{
	"tools":     map[string]any{"listChanged": false},
	"resources": map[string]any{"listChanged": true, "subscribe": false},
	"prompts":   map[string]any{"listChanged": false},
}

// Dispatcher routes decoded JSON-RPC envelopes to their handlers. It is
// stateless across requests; session state lives in the transport layer
// and the analysis supervisor.
type Dispatcher struct {
	Tools *tools.Service
	Files tools.FileStore
	Ctrl  *runtime.Controller
	Info  ServerInfo
}

type promptSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func promptList() []promptSummary {
	all := prompts.List()
	out := make([]promptSummary, 0, len(all))
	for _, p := range all {
		out = append(out, promptSummary{Name: p.Name, Description: p.Description})
	}
	return out
}

// Handle processes one inbound frame. It returns nil when no response
// must be sent: notifications, and the background-capable tool whose
// result arrives later via notify.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte, notify analysis.Reporter) *jsonrpc.Response {
	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(jsonrpc.CodeParseError, "Request must be a JSON object"))
	}
	if req.Method == "" {
		return d.respondOrDrop(&req, nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Method is required"))
	}

	log.Ctx(ctx).Debug().Str("method", req.Method).Msg("request received")

	var (
		result any
		rpcErr *jsonrpc.Error
	)
	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    capabilities,
			"serverInfo":      d.Info,
		}
	case "notifications/initialized":
		result = map[string]any{}
	case "tools/list":
		result = map[string]any{"tools": tools.Catalog()}
	case "tools/call":
		done := false
		result, done, rpcErr = d.callTool(ctx, req.Params, notify)
		if done {
			return nil
		}
	case "resources/list":
		result, rpcErr = d.listResources(ctx)
	case "resources/read":
		result, rpcErr = d.readResource(req.Params)
	case "prompts/list":
		result = map[string]any{"prompts": promptList()}
	case "prompts/get":
		result, rpcErr = d.getPrompt(req.Params)
	default:
		rpcErr = jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "Method '"+req.Method+"' not found")
	}

	return d.respondOrDrop(&req, result, rpcErr)
}

// respondOrDrop pairs the outcome with the request id; notifications get
// no response regardless of outcome.
func (d *Dispatcher) respondOrDrop(req *jsonrpc.Request, result any, rpcErr *jsonrpc.Error) *jsonrpc.Response {
	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}
	return jsonrpc.NewResponse(req.ID, result)
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// callTool validates the tool name, then either schedules the background
// tool (done=true, no response ever) or executes synchronously under the
// concurrency gate.
func (d *Dispatcher) callTool(ctx context.Context, params json.RawMessage, notify analysis.Reporter) (any, bool, *jsonrpc.Error) {
	var p callParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, false, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Malformed tool call parameters.")
		}
	}
	if p.Name == "" {
		return nil, false, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Tool name is required.")
	}

	tool, ok := tools.Lookup(p.Name)
	if !ok {
		return nil, false, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Tool '"+p.Name+"' unknown.")
	}

	if tool.Background {
		if err := d.Tools.Trigger(p.Arguments, notify); err != nil {
			return nil, false, toRPCError(err)
		}
		return nil, true, nil
	}

	var result any
	err := d.Ctrl.Run(ctx, func(callCtx context.Context) error {
		var callErr error
		result, callErr = d.Tools.Call(callCtx, p.Name, p.Arguments)
		return callErr
	})
	if err != nil {
		return nil, false, toRPCError(err)
	}
	return map[string]any{"content": result, "isError": false}, false, nil
}

// toRPCError maps handler failures to wire codes. Classified errors carry
// their own code; gate and timeout failures surface as tool-execution
// errors the client can retry.
func toRPCError(err error) *jsonrpc.Error {
	switch {
	case errors.Is(err, runtime.ErrBusy):
		return jsonrpc.NewError(jsonrpc.CodeToolExecutionFailed, "BUSY_RESOURCE: concurrent request limit reached. Please retry shortly.")
	case errors.Is(err, context.DeadlineExceeded):
		return jsonrpc.NewError(jsonrpc.CodeToolExecutionFailed, "TIMEOUT: operation exceeded configured time limit.")
	}
	return jsonrpc.NewError(mcperr.KindOf(err).RPCCode(), mcperr.ClientMessage(err))
}

type resourceEntry struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (d *Dispatcher) listResources(ctx context.Context) (any, *jsonrpc.Error) {
	files, err := d.Files.GetAll()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing resources failed")
		return nil, jsonrpc.NewError(jsonrpc.CodeStorageUnavailable, "Gagal membaca daftar resource.")
	}
	entries := make([]resourceEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, resourceEntry{
			URI:      ResourcePrefix + f.Filename,
			Name:     f.Filename,
			MimeType: jsonMIME,
		})
	}
	return map[string]any{"resources": entries}, nil
}

type readParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) readResource(params json.RawMessage) (any, *jsonrpc.Error) {
	var p readParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Malformed resource read parameters.")
		}
	}
	if !strings.HasPrefix(p.URI, ResourcePrefix) {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid Resource URI.")
	}

	filename := strings.TrimPrefix(p.URI, ResourcePrefix)
	file, err := d.Files.FindByFilename(filename)
	if err != nil || file.JSONContent == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeResourceNotFound, "Resource '"+filename+"' not found.")
	}

	return map[string]any{
		"contents": []map[string]any{{
			"uri":      p.URI,
			"mimeType": jsonMIME,
			"text":     file.JSONContent,
		}},
	}, nil
}

type getPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (d *Dispatcher) getPrompt(params json.RawMessage) (any, *jsonrpc.Error) {
	var p getPromptParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Malformed prompt parameters.")
		}
	}

	prompt, ok := prompts.Get(p.Name)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Prompt '"+p.Name+"' not found.")
	}
	text, err := prompt.Render(p.Arguments)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())
	}

	return map[string]any{
		"messages": []map[string]any{{
			"role": "user",
			"content": map[string]any{
				"type": "text",
				"text": text,
			},
		}},
	}, nil
}
