// Package mcpgateway implements the MCP effect gateway (C4): it maintains
// live client sessions to upstream tool servers with reconnection, and
// dispatches tool calls.
package mcpgateway

import (
	"encoding/json"
	"fmt"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// TransportKind is the wire transport used to reach one upstream server.
type TransportKind string

// Supported transports (§4.3).
const (
	TransportStdio      TransportKind = "stdio"
	TransportSSE        TransportKind = "sse"
	TransportStreamable TransportKind = "streamable_http"
)

// ServerConfig configures one upstream MCP server connection.
type ServerConfig struct {
	Name      string
	Transport TransportKind

	// Process-launching fields (TransportStdio only).
	Command string
	Args    []string
	Env     map[string]string

	// URL-based fields (TransportSSE, TransportStreamable).
	URL     string
	Headers map[string]string
}

// Validate enforces mutual exclusion between process-launching and
// URL-based fields (§4.3).
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return toolerrors.NewInvalidArgumentError("mcp server config missing name", nil)
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("mcp server %q: stdio transport requires command", c.Name), nil)
		}
		if c.URL != "" {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("mcp server %q: stdio transport cannot set url", c.Name), nil)
		}
	case TransportSSE, TransportStreamable:
		if c.URL == "" {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("mcp server %q: %s transport requires url", c.Name, c.Transport), nil)
		}
		if c.Command != "" || len(c.Args) > 0 {
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("mcp server %q: %s transport cannot set command/args", c.Name, c.Transport), nil)
		}
	default:
		return toolerrors.NewInvalidArgumentError(
			fmt.Sprintf("mcp server %q: unknown transport %q", c.Name, c.Transport), nil)
	}
	return nil
}

// ToolInfo describes one tool advertised by an upstream server.
type ToolInfo struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
}

// ContentKind tags the variant of ContentItem.
type ContentKind string

// Content kinds returned by a tool call.
const (
	ContentText       ContentKind = "text"
	ContentStructured ContentKind = "structured"
)

// ContentItem is one piece of a CallResult's content.
type ContentItem struct {
	Kind       ContentKind
	Text       string
	Structured any
}

// CallResult is the raw result of a tool call, before §4.3's result
// mapping collapses it to a VM-facing value.
type CallResult struct {
	IsError bool
	Content []ContentItem
}
