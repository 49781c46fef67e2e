// Package jsonrpc defines the JSON-RPC 2.0 wire types and the canonical
// error-code catalog used by the MCP dispatcher.
package jsonrpc

import "encoding/json"

// Version is the protocol version stamped on every outbound message.
const Version = "2.0"

// Request models an inbound envelope. A nil ID (absent from the wire)
// marks the envelope as a notification: it must never be answered.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a success or error reply correlated to a request id.
// Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// Notification is a server-to-client message with no id and no reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is the error member of a failed response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Standard JSON-RPC codes plus the domain-specific codes carried over the
// same wire. Domain codes live in the implementation-reserved range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeResourceNotFound    = -32001
	CodeToolExecutionFailed = -32002
	CodeStorageUnavailable  = -32005
)

// defaultMessages backs NewError when the caller supplies no message.
var defaultMessages = map[int]string{
	CodeParseError:          "parse error",
	CodeInvalidRequest:      "invalid request",
	CodeMethodNotFound:      "method not found",
	CodeInvalidParams:       "invalid params",
	CodeInternalError:       "internal error",
	CodeResourceNotFound:    "resource not found",
	CodeToolExecutionFailed: "tool execution failed",
	CodeStorageUnavailable:  "storage connection failed",
}

// NewError builds an Error for a catalog code. The message, when given,
// overrides the catalog default; it must be safe to show verbatim.
func NewError(code int, message string) *Error {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Error{Code: code, Message: message}
}

// NewResponse builds a success response for the given raw id.
func NewResponse(id *json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error response preserving the request id,
// which may be nil when the request never carried one.
func NewErrorResponse(id *json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// NewNotification builds a server-initiated notification.
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}
