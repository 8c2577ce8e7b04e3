package mcpgateway

import (
	"testing"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidate_StdioRequiresCommand(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportStdio}.Validate()
	require.Error(t, err)
	assert.True(t, toolerrors.IsInvalidArgument(err))
}

func TestServerConfigValidate_StdioRejectsURL(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportStdio, Command: "bin", URL: "http://x"}.Validate()
	require.Error(t, err)
}

func TestServerConfigValidate_HTTPRequiresURL(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportSSE}.Validate()
	require.Error(t, err)
}

func TestServerConfigValidate_HTTPRejectsCommand(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportStreamable, URL: "http://x", Command: "bin"}.Validate()
	require.Error(t, err)
}

func TestServerConfigValidate_UnknownTransport(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: "carrier-pigeon"}.Validate()
	require.Error(t, err)
}

func TestServerConfigValidate_ValidStdio(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportStdio, Command: "fs-bin"}.Validate()
	assert.NoError(t, err)
}

func TestServerConfigValidate_ValidStreamable(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Name: "fs", Transport: TransportStreamable, URL: "https://mcp.example/fs"}.Validate()
	assert.NoError(t, err)
}

func TestServerConfigValidate_MissingName(t *testing.T) {
	t.Parallel()
	err := ServerConfig{Transport: TransportStdio, Command: "bin"}.Validate()
	require.Error(t, err)
}
