package mcpgateway

import (
	"context"
	"fmt"
	"sync"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// session wraps a live Client together with the config used to (re)dial it.
type session struct {
	mu     sync.Mutex
	cfg    ServerConfig
	client Client
}

// SessionMap holds one session per configured upstream server, indexed by
// name. Callers address servers by name rather than by holding a Client
// directly, so a reconnect transparently replaces the underlying client
// without invalidating anything the caller holds (§9 design note).
type SessionMap struct {
	dialer Dialer

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionMap constructs an empty SessionMap backed by the given Dialer.
func NewSessionMap(dialer Dialer) *SessionMap {
	return &SessionMap{dialer: dialer, sessions: make(map[string]*session)}
}

// ConnectAll dials every configured server concurrently, bounded to
// maxConcurrent in flight at once (unbounded when maxConcurrent <= 0). A failed connection is logged and
// skipped rather than aborting the others (§4.3).
func (m *SessionMap) ConnectAll(ctx context.Context, configs []ServerConfig, maxConcurrent int) error {
	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	for _, cfg := range configs {
		cfg := cfg
		if err := cfg.Validate(); err != nil {
			logger.Errorw("skipping invalid mcp server config", "name", cfg.Name, "error", err)
			continue
		}
		g.Go(func() error {
			client, err := m.dialer.Dial(gctx, cfg)
			if err != nil {
				logger.Errorw("failed to connect to mcp server", "name", cfg.Name, "error", err)
				return nil
			}
			m.mu.Lock()
			m.sessions[cfg.Name] = &session{cfg: cfg, client: client}
			m.mu.Unlock()
			logger.Infow("connected to mcp server", "name", cfg.Name, "transport", cfg.Transport)
			return nil
		})
	}
	return g.Wait()
}

// get returns the named session, or a not-found error.
func (m *SessionMap) get(name string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, toolerrors.NewNotFoundError(fmt.Sprintf("mcp server %q is not connected", name), nil)
	}
	return s, nil
}

// reconnect replaces s's client with a freshly dialed one under the
// session's own lock, so concurrent callers on the same server redial one
// at a time; each caller that reaches reconnect performs its own redial,
// even if another caller has just replaced the client.
func (s *session) reconnect(ctx context.Context, dialer Dialer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, err := dialer.Dial(ctx, s.cfg)
	if err != nil {
		return toolerrors.NewUnavailableError(fmt.Sprintf("reconnect to mcp server %q failed", s.cfg.Name), err)
	}
	if s.client != nil {
		_ = s.client.Close()
	}
	s.client = client
	return nil
}

// ListTools lists the tools advertised by the named server.
func (m *SessionMap) ListTools(ctx context.Context, serverName string) ([]ToolInfo, error) {
	s, err := m.get(serverName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	return client.ListTools(ctx)
}

// CallTool invokes a tool on the named server, reconnecting once and
// retrying if the first attempt returns an error (§4.3). Any error the
// client returns triggers the reconnect; transport failures are not told
// apart from other errors.
func (m *SessionMap) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (CallResult, error) {
	s, err := m.get(serverName)
	if err != nil {
		return CallResult{}, err
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	result, callErr := client.CallTool(ctx, toolName, args)
	if callErr == nil {
		return result, nil
	}

	logger.Warnw("mcp tool call failed, reconnecting once", "server", serverName, "tool", toolName, "error", callErr)
	if reErr := s.reconnect(ctx, m.dialer); reErr != nil {
		return CallResult{}, toolerrors.NewUnavailableError(
			fmt.Sprintf("mcp server %q: tool %q call failed and reconnect failed", serverName, toolName), reErr)
	}

	s.mu.Lock()
	client = s.client
	s.mu.Unlock()

	result, callErr = client.CallTool(ctx, toolName, args)
	if callErr != nil {
		return CallResult{}, toolerrors.NewUnavailableError(
			fmt.Sprintf("mcp server %q: tool %q call failed after reconnect", serverName, toolName), callErr)
	}
	return result, nil
}

// CloseAll closes every session's underlying client.
func (m *SessionMap) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, s := range m.sessions {
		s.mu.Lock()
		if s.client != nil {
			if err := s.client.Close(); err != nil {
				logger.Warnw("error closing mcp session", "name", name, "error", err)
			}
		}
		s.mu.Unlock()
	}
}

// Names returns the names of every currently connected server.
func (m *SessionMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		out = append(out, name)
	}
	return out
}
