package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/runtime"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/tools"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/jsonrpc"
)

type stubSource struct{}

func (stubSource) Fetch(ctx context.Context, sheetName, sourceID string) (*dataset.Dataset, error) {
	return dataset.New([]string{"NO ASSET", "AREA"}, [][]any{{"100", "DURI"}}), nil
}

func (stubSource) ListSheets(ctx context.Context, sourceID string) ([]string, error) {
	return []string{"MASTER-SHEET", "REKAP"}, nil
}

type stubFiles struct {
	files map[string]storage.File
}

func (s *stubFiles) Save(f storage.File) (storage.File, error) { return f, nil }

func (s *stubFiles) FindByFilename(filename string) (storage.File, error) {
	f, ok := s.files[filename]
	if !ok {
		return storage.File{}, storage.ErrNotFound
	}
	return f, nil
}

func (s *stubFiles) FindByTimestamp(timestamp string) (storage.File, error) {
	return storage.File{}, storage.ErrNotFound
}

func (s *stubFiles) GetAll() ([]storage.File, error) {
	out := make([]storage.File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	return out, nil
}

func (s *stubFiles) DeleteByTimestamp(timestamp string) error { return nil }

type stubAnalyses struct {
	err   error
	calls int
}

func (s *stubAnalyses) Trigger(opts analysis.Options, notify analysis.Reporter) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	notify(analysis.StatusStarting, "Analisis telah dimulai...")
	notify(analysis.StatusCompleted, "Analisis berhasil diselesaikan.")
	return nil
}

func newTestDispatcher(analyses *stubAnalyses, files *stubFiles) *Dispatcher {
	if files == nil {
		files = &stubFiles{files: map[string]storage.File{}}
	}
	return &Dispatcher{
		Tools: &tools.Service{
			Source:   stubSource{},
			Files:    files,
			Cache:    analysis.NewCache(),
			Analyses: analyses,
		},
		Files: files,
		Ctrl:  runtime.NewController(runtime.NewLimits(2)),
		Info:  ServerInfo{Name: "PHR Asset Management Server", Version: "test"},
	}
}

// wireResponse is the decoded outbound frame, as a client would see it.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  map[string]any  `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func roundTrip(t *testing.T, d *Dispatcher, frame string, notify analysis.Reporter) *wireResponse {
	t.Helper()
	if notify == nil {
		notify = func(string, string) {}
	}
	resp := d.Handle(context.Background(), []byte(frame), notify)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out wireResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "2.0", out.JSONRPC)
	return &out
}

func TestHandleParseError(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{broken`, nil)
	require.NotNil(t, resp)
	require.Equal(t, "null", string(resp.ID))
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeParseError, resp.Error.Code)
	require.Equal(t, "Request must be a JSON object", resp.Error.Message)
}

func TestHandleMissingMethod(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":7}`, nil)
	require.NotNil(t, resp)
	require.Equal(t, "7", string(resp.ID))
	require.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
	require.Equal(t, "Method is required", resp.Error.Message)
}

func TestHandleUnknownMethod(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/destroy"}`, nil)
	require.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "tools/destroy")
}

func TestHandleInitialize(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, nil)
	require.Nil(t, resp.Error)
	require.Equal(t, ProtocolVersion, resp.Result["protocolVersion"])

	info := resp.Result["serverInfo"].(map[string]any)
	require.Equal(t, "PHR Asset Management Server", info["name"])

	caps := resp.Result["capabilities"].(map[string]any)
	require.Equal(t, false, caps["tools"].(map[string]any)["listChanged"])
	require.Equal(t, true, caps["resources"].(map[string]any)["listChanged"])
	require.Equal(t, false, caps["resources"].(map[string]any)["subscribe"])
}

func TestHandleInitializedNotification(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	// Without an id it is a notification: no response at all.
	require.Nil(t, roundTrip(t, d, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil))

	// With an id it is acknowledged with an empty object.
	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":2,"method":"notifications/initialized"}`, nil)
	require.Nil(t, resp.Error)
	require.Empty(t, resp.Result)
}

func TestToolsListExposesCatalog(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, nil)
	require.Nil(t, resp.Error)

	listed := resp.Result["tools"].([]any)
	require.Len(t, listed, len(tools.Catalog()))
	names := map[string]bool{}
	for _, item := range listed {
		entry := item.(map[string]any)
		names[entry["name"].(string)] = true
		require.NotEmpty(t, entry["description"])
		require.NotNil(t, entry["inputSchema"])
	}
	require.True(t, names["query_assets"])
	require.True(t, names["trigger_analysis"])
	require.True(t, names["save_analysis"])
}

func TestToolsCallRequiresName(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"arguments":{}}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	require.Equal(t, "Tool name is required.", resp.Error.Message)
}

func TestToolsCallUnknownTool(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"drop_tables"}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	require.Equal(t, "Tool 'drop_tables' unknown.", resp.Error.Message)
}

func TestToolsCallSynchronousEnvelope(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_sheet_names"}}`, nil)
	require.Nil(t, resp.Error)
	require.Equal(t, false, resp.Result["isError"])
	require.Equal(t, []any{"MASTER-SHEET", "REKAP"}, resp.Result["content"])
}

func TestToolsCallClassifiedErrorCode(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	// Missing required argument surfaces as invalid params, not internal.
	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"query_resource","arguments":{}}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestToolsCallBackgroundHasNoResponse(t *testing.T) {
	analyses := &stubAnalyses{}
	d := newTestDispatcher(analyses, nil)

	var statuses []string
	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"trigger_analysis","arguments":{"summarize":true}}}`,
		func(status, message string) { statuses = append(statuses, status) })

	require.Nil(t, resp)
	require.Equal(t, 1, analyses.calls)
	require.Equal(t, []string{analysis.StatusStarting, analysis.StatusCompleted}, statuses)
}

func TestToolsCallBackgroundBusy(t *testing.T) {
	analyses := &stubAnalyses{err: analysis.ErrAnalysisRunning}
	d := newTestDispatcher(analyses, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"trigger_analysis"}}`, nil)
	require.NotNil(t, resp)
	require.Equal(t, jsonrpc.CodeToolExecutionFailed, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "analisis lain sedang berjalan")
}

func TestResourcesListAndRead(t *testing.T) {
	files := &stubFiles{files: map[string]storage.File{
		"data_MASTER-SHEET_20250601_103000.json": {
			Filename:    "data_MASTER-SHEET_20250601_103000.json",
			FileType:    "json",
			JSONContent: `[{"NO ASSET":"100"}]`,
		},
	}}
	d := newTestDispatcher(&stubAnalyses{}, files)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, nil)
	require.Nil(t, resp.Error)
	resources := resp.Result["resources"].([]any)
	require.Len(t, resources, 1)
	entry := resources[0].(map[string]any)
	require.Equal(t, ResourcePrefix+"data_MASTER-SHEET_20250601_103000.json", entry["uri"])
	require.Equal(t, "application/json", entry["mimeType"])

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"phr://resource/data_MASTER-SHEET_20250601_103000.json"}}`, nil)
	require.Nil(t, resp.Error)
	contents := resp.Result["contents"].([]any)
	require.Len(t, contents, 1)
	require.Equal(t, `[{"NO ASSET":"100"}]`, contents[0].(map[string]any)["text"])

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"ftp://nope"}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	require.Equal(t, "Invalid Resource URI.", resp.Error.Message)

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"phr://resource/hilang.json"}}`, nil)
	require.Equal(t, jsonrpc.CodeResourceNotFound, resp.Error.Code)
	require.Equal(t, "Resource 'hilang.json' not found.", resp.Error.Message)
}

func TestPromptsListAndGet(t *testing.T) {
	d := newTestDispatcher(&stubAnalyses{}, nil)

	resp := roundTrip(t, d, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`, nil)
	require.Nil(t, resp.Error)
	listed := resp.Result["prompts"].([]any)
	require.Len(t, listed, 2)

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"standard_summary","arguments":{"document":"NO ASSET\t100"}}}`, nil)
	require.Nil(t, resp.Error)
	messages := resp.Result["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	require.Equal(t, "user", msg["role"])
	content := msg["content"].(map[string]any)
	require.Equal(t, "text", content["type"])
	require.Contains(t, content["text"], "NO ASSET\t100")

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{"name":"hilang"}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	require.Equal(t, "Prompt 'hilang' not found.", resp.Error.Message)

	resp = roundTrip(t, d, `{"jsonrpc":"2.0","id":4,"method":"prompts/get","params":{"name":"standard_summary"}}`, nil)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "document")
}
