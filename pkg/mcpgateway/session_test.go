package mcpgateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAll_SkipsFailedServersAndConnectsRest(t *testing.T) {
	t.Parallel()
	dialer := newFakeDialer()
	dialer.dialErr["broken"] = assertErr("boom")

	sessions := NewSessionMap(dialer)
	err := sessions.ConnectAll(context.Background(), []ServerConfig{
		{Name: "broken", Transport: TransportStdio, Command: "broken-bin"},
		{Name: "good", Transport: TransportStdio, Command: "good-bin"},
	}, 4)
	require.NoError(t, err)

	names := sessions.Names()
	assert.ElementsMatch(t, []string{"good"}, names)

	_, lookupErr := sessions.ListTools(context.Background(), "broken")
	require.Error(t, lookupErr)
}

func TestConnectAll_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	dialer := newFakeDialer()
	sessions := NewSessionMap(dialer)

	err := sessions.ConnectAll(context.Background(), []ServerConfig{
		{Name: "bad", Transport: TransportStdio}, // missing Command
	}, 4)
	require.NoError(t, err)
	assert.Empty(t, sessions.Names())
	assert.Equal(t, 0, dialer.count("bad"))
}

func TestCallTool_ReconnectsOnceAfterTransportError(t *testing.T) {
	t.Parallel()
	dialer := newFakeDialer()
	sessions := NewSessionMap(dialer)

	require.NoError(t, sessions.ConnectAll(context.Background(), []ServerConfig{
		{Name: "fs", Transport: TransportStdio, Command: "fs-bin"},
	}, 4))

	first := dialer.lastClient("fs")
	first.callResults["read_file"] = []callOutcome{
		{err: assertErr("connection reset")},
	}

	_, err := sessions.CallTool(context.Background(), "fs", "read_file", map[string]any{"path": "/tmp/x"})
	require.Error(t, err, "first client has no further outcomes queued, so after reconnect the second client also errors until configured")

	assert.Equal(t, 2, dialer.count("fs"), "expected exactly one reconnect dial")

	second := dialer.lastClient("fs")
	require.NotSame(t, first, second)
	second.callResults["read_file"] = []callOutcome{
		{result: CallResult{Content: []ContentItem{{Kind: ContentText, Text: "hello"}}}},
	}

	result, err := sessions.CallTool(context.Background(), "fs", "read_file", map[string]any{"path": "/tmp/x"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestCallTool_UnknownServer(t *testing.T) {
	t.Parallel()
	sessions := NewSessionMap(newFakeDialer())
	_, err := sessions.CallTool(context.Background(), "nope", "read_file", nil)
	require.Error(t, err)
}

func TestCloseAll_ClosesEveryClient(t *testing.T) {
	t.Parallel()
	dialer := newFakeDialer()
	sessions := NewSessionMap(dialer)
	require.NoError(t, sessions.ConnectAll(context.Background(), []ServerConfig{
		{Name: "a", Transport: TransportStdio, Command: "a-bin"},
		{Name: "b", Transport: TransportStdio, Command: "b-bin"},
	}, 4))

	sessions.CloseAll()
	assert.True(t, dialer.lastClient("a").closed)
	assert.True(t, dialer.lastClient("b").closed)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
