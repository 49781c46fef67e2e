package config

import "time"

// Default runtime limits and guardrails for the asset management MCP server.
// These values are conservative and can be overridden via ASSETMCP_* env
// variables at startup. They are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10

	// Query result bounds
	DefaultTopValuesLimit = 5
	DefaultQueryLimit     = 10

	// Inbound websocket frame bound
	DefaultMaxMessageBytes = 1 * 1024 * 1024 // 1MB
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAnalysisTimeout       = 5 * time.Minute
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultShutdownTimeout       = 5 * time.Second
)

// Default sheet names per data source.
const (
	DefaultMasterSheet = "MASTER-SHEET"
	DefaultCycleSheet  = "CYCLE-1-YEAR-2026"
)
