package mcpgateway

import (
	"context"
	"encoding/json"
	"fmt"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Gateway is the C4 MCP effect gateway: it validates call arguments against
// a tool's declared input schema, dispatches through a SessionMap, and
// collapses the result into a single VM-facing value (§4.3).
type Gateway struct {
	sessions *SessionMap
}

// New constructs a Gateway backed by the given SessionMap.
func New(sessions *SessionMap) *Gateway {
	return &Gateway{sessions: sessions}
}

// ConnectAll dials every configured server (see SessionMap.ConnectAll).
func (g *Gateway) ConnectAll(ctx context.Context, configs []ServerConfig, maxConcurrent int) error {
	return g.sessions.ConnectAll(ctx, configs, maxConcurrent)
}

// CloseAll closes every connected session.
func (g *Gateway) CloseAll() {
	g.sessions.CloseAll()
}

// Call validates args against the tool's input schema (when one is known),
// invokes it, and maps the result to a single value.
func (g *Gateway) Call(ctx context.Context, serverName, toolName string, schema json.RawMessage, args map[string]any) (any, error) {
	if len(schema) > 0 {
		if err := validateArgs(toolName, schema, args); err != nil {
			return nil, err
		}
	}

	result, err := g.sessions.CallTool(ctx, serverName, toolName, args)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, toolerrors.NewUnavailableError(
			fmt.Sprintf("mcp tool %q on server %q reported an error result", toolName, serverName), nil)
	}
	return mapResult(result), nil
}

// ListTools lists the tools advertised by a named server.
func (g *Gateway) ListTools(ctx context.Context, serverName string) ([]ToolInfo, error) {
	return g.sessions.ListTools(ctx, serverName)
}

func validateArgs(toolName string, schema json.RawMessage, args map[string]any) error {
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	payload := args
	if payload == nil {
		payload = map[string]any{}
	}
	docLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return toolerrors.NewInvalidArgumentError(fmt.Sprintf("tool %q: malformed input schema", toolName), err)
	}
	if !result.Valid() {
		if len(result.Errors()) > 0 {
			first := result.Errors()[0]
			return toolerrors.NewInvalidArgumentError(
				fmt.Sprintf("tool %q: argument %s: %s", toolName, first.Field(), first.Description()), nil)
		}
		return toolerrors.NewInvalidArgumentError(fmt.Sprintf("tool %q: arguments failed schema validation", toolName), nil)
	}
	return nil
}

// mapResult collapses a CallResult's content list to a single VM-facing
// value: zero items map to nil, a single text item maps to its string, a
// single structured item maps to its parsed value, and multiple items map
// to an array holding each one's mapped value in order (§4.3).
func mapResult(result CallResult) any {
	switch len(result.Content) {
	case 0:
		return nil
	case 1:
		return mapContentItem(result.Content[0])
	default:
		out := make([]any, len(result.Content))
		for i, item := range result.Content {
			out[i] = mapContentItem(item)
		}
		return out
	}
}

func mapContentItem(item ContentItem) any {
	switch item.Kind {
	case ContentText:
		return item.Text
	case ContentStructured:
		return item.Structured
	default:
		return nil
	}
}
