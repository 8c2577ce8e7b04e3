package mcpgateway

import (
	"context"
	"sync"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// fakeClient is an in-memory Client double.
type fakeClient struct {
	mu sync.Mutex

	tools []ToolInfo
	// callResults maps tool name to the result returned for each call, in
	// order; once exhausted the last entry repeats.
	callResults map[string][]callOutcome
	calls       []recordedCall
	closed      bool
}

type callOutcome struct {
	result CallResult
	err    error
}

type recordedCall struct {
	tool string
	args map[string]any
}

func (f *fakeClient) ListTools(_ context.Context) ([]ToolInfo, error) {
	return f.tools, nil
}

func (f *fakeClient) CallTool(_ context.Context, name string, args map[string]any) (CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{tool: name, args: args})

	outcomes := f.callResults[name]
	if len(outcomes) == 0 {
		return CallResult{}, toolerrors.NewNotFoundError("no fake outcome configured for tool "+name, nil)
	}
	// Pop the first configured outcome for this tool so repeated calls walk
	// through the configured sequence.
	out := outcomes[0]
	if len(outcomes) > 1 {
		f.callResults[name] = outcomes[1:]
	}
	return out.result, out.err
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeDialer hands out fakeClients, tracking how many times each server was
// dialed so tests can assert reconnect behavior.
type fakeDialer struct {
	mu        sync.Mutex
	clients   map[string][]*fakeClient // server name -> clients returned, in dial order
	dialCount map[string]int
	dialErr   map[string]error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		clients:   make(map[string][]*fakeClient),
		dialCount: make(map[string]int),
		dialErr:   make(map[string]error),
	}
}

func (d *fakeDialer) Dial(_ context.Context, cfg ServerConfig) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCount[cfg.Name]++
	if err := d.dialErr[cfg.Name]; err != nil {
		return nil, err
	}
	c := &fakeClient{callResults: make(map[string][]callOutcome)}
	d.clients[cfg.Name] = append(d.clients[cfg.Name], c)
	return c, nil
}

func (d *fakeDialer) lastClient(name string) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs := d.clients[name]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (d *fakeDialer) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialCount[name]
}
