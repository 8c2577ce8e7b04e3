package mcpgateway

import (
	"context"
	"fmt"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// realDialer dials real upstream MCP servers over the mark3labs/mcp-go
// client library. It is the only file in this package that touches that
// library directly; everything else in mcpgateway is exercised against the
// Client/Dialer interfaces so it can be tested with a fake.
type realDialer struct{}

// NewRealDialer returns a Dialer backed by mark3labs/mcp-go.
func NewRealDialer() Dialer {
	return realDialer{}
}

func (realDialer) Dial(ctx context.Context, cfg ServerConfig) (Client, error) {
	var c *client.Client
	var err error

	switch cfg.Transport {
	case TransportStdio:
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		c, err = client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		c, err = client.NewSSEMCPClient(cfg.URL, opts...)
	case TransportStreamable:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, toolerrors.NewInvalidArgumentError(fmt.Sprintf("unknown mcp transport %q", cfg.Transport), nil)
	}
	if err != nil {
		return nil, toolerrors.NewUnavailableError(fmt.Sprintf("dial mcp server %q", cfg.Name), err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, toolerrors.NewUnavailableError(fmt.Sprintf("start mcp client %q", cfg.Name), err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "toolscript", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, toolerrors.NewUnavailableError(fmt.Sprintf("initialize mcp session %q", cfg.Name), err)
	}

	return &realClient{name: cfg.Name, inner: c}, nil
}

// realClient adapts *client.Client to the Client interface.
type realClient struct {
	name  string
	inner *client.Client
}

func (r *realClient) ListTools(ctx context.Context) ([]ToolInfo, error) {
	resp, err := r.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, toolerrors.NewUnavailableError(fmt.Sprintf("list tools on %q", r.name), err)
	}
	out := make([]ToolInfo, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schema, marshalErr := t.InputSchema.MarshalJSON()
		if marshalErr != nil {
			schema = nil
		}
		out = append(out, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

func (r *realClient) CallTool(ctx context.Context, name string, args map[string]any) (CallResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := r.inner.CallTool(ctx, req)
	if err != nil {
		return CallResult{}, toolerrors.NewUnavailableError(fmt.Sprintf("call tool %q on %q", name, r.name), err)
	}

	result := CallResult{IsError: resp.IsError}
	for _, c := range resp.Content {
		switch item := c.(type) {
		case mcp.TextContent:
			result.Content = append(result.Content, ContentItem{Kind: ContentText, Text: item.Text})
		default:
			result.Content = append(result.Content, ContentItem{Kind: ContentStructured, Structured: item})
		}
	}
	return result, nil
}

func (r *realClient) Close() error {
	return r.inner.Close()
}
