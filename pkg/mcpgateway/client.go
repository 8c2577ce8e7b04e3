package mcpgateway

import "context"

// Client is a live connection to one upstream MCP server. realClient
// implements it against mark3labs/mcp-go; tests use a fake.
type Client interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (CallResult, error)
	Close() error
}

// Dialer establishes a Client for a ServerConfig. NewRealDialer returns the
// production implementation.
type Dialer interface {
	Dial(ctx context.Context, cfg ServerConfig) (Client, error)
}
