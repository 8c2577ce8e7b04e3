// Package app provides the entry point for the toolscript command-line
// application.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alennartz/toolscript/pkg/apiserver"
	"github.com/alennartz/toolscript/pkg/authmw"
	"github.com/alennartz/toolscript/pkg/catalogue"
	"github.com/alennartz/toolscript/pkg/config"
	"github.com/alennartz/toolscript/pkg/executor"
	"github.com/alennartz/toolscript/pkg/fsfacet"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/alennartz/toolscript/pkg/logger"
	"github.com/alennartz/toolscript/pkg/mcpgateway"
)

var rootCmd = &cobra.Command{
	Use:               "toolscript",
	DisableAutoGenTag: true,
	Short:             "Run descriptor-bound scripts in a sandboxed VM",
	Long: `toolscript executes scripts against a catalogue of HTTP functions and MCP
tools described by a manifest, inside a sandboxed VM with no ambient network
or filesystem access beyond what the catalogue grants.

It can run as a hosted HTTP server (serve) or execute a single script
directly against stdio (exec).`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			_ = os.Setenv("DEBUG", "true")
		}
		logger.Initialize()
	},
}

// NewRootCmd creates and configures the root command for the toolscript CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the TOML configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExecCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hosted HTTP server",
		Long: `Start the hosted HTTP server, which loads a descriptor manifest, connects
to every configured MCP server, and exposes the execute_script endpoint
over HTTP.`,
		RunE: runServe,
	}
}

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [script-file]",
		Short: "Execute a single script against stdio",
		Long: `Execute one script directly, without starting an HTTP server. The
filesystem facet is enabled by default in this mode. The script is read
from the given file, or from stdin if no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExec,
	}
	cmd.Flags().String("manifest", "", "Path to the descriptor manifest file (required)")
	cmd.Flags().String("sandbox-root", "", "Root directory the filesystem facet is confined to")
	return cmd
}

func mcpServersFromConfigFlag() []mcpgateway.ServerConfig {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warnw("ignoring --config for mcp server list", "error", err)
		return nil
	}
	configs := make([]mcpgateway.ServerConfig, len(cfg.MCPServers))
	for i, s := range cfg.MCPServers {
		configs[i] = s.ToServerConfig()
	}
	return configs
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	manifestData, err := os.ReadFile(cfg.ManifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest %q: %w", cfg.ManifestPath, err)
	}
	manifest, err := catalogue.LoadManifest(manifestData)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	cat := catalogue.New(manifest)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverConfigs := make([]mcpgateway.ServerConfig, len(cfg.MCPServers))
	for i, s := range cfg.MCPServers {
		serverConfigs[i] = s.ToServerConfig()
	}
	sessions := mcpgateway.NewSessionMap(mcpgateway.NewRealDialer())
	if err := sessions.ConnectAll(ctx, serverConfigs, 0); err != nil {
		return fmt.Errorf("connecting to mcp servers: %w", err)
	}
	mcpGateway := mcpgateway.New(sessions)
	defer mcpGateway.CloseAll()

	exec := executor.New(executor.Config{
		Catalogue:         cat,
		HTTP:              httpgateway.New(nil),
		MCP:               mcpGateway,
		Timeout:           cfg.Execution.Timeout(),
		MemoryLimitBytes:  cfg.Execution.MemoryLimitBytes,
		CallCountLimit:    cfg.Execution.CallCountLimit,
		FilesystemEnabled: cfg.Execution.FilesystemEnabled,
		FilesystemConfig: fsfacet.Config{
			Root:          cfg.Execution.SandboxRoot,
			MaxWriteBytes: cfg.Execution.MaxWriteBytes,
		},
	})

	var auth func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		mw, err := authmw.New(ctx, authmw.Config{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
			JWKSURL:  cfg.Auth.JWKSURL,
		})
		if err != nil {
			return fmt.Errorf("initializing auth middleware: %w", err)
		}
		auth = mw.Wrap
	}

	srv := apiserver.New(exec, auth)
	return srv.Serve(ctx, cfg.HTTP.Address)
}

func runExec(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	if manifestPath == "" {
		return fmt.Errorf("no manifest specified, use --manifest flag")
	}
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest %q: %w", manifestPath, err)
	}
	manifest, err := catalogue.LoadManifest(manifestData)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	cat := catalogue.New(manifest)

	var script []byte
	if len(args) == 1 {
		script, err = os.ReadFile(args[0])
	} else {
		script, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	sandboxRoot, _ := cmd.Flags().GetString("sandbox-root")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions := mcpgateway.NewSessionMap(mcpgateway.NewRealDialer())
	if err := sessions.ConnectAll(ctx, mcpServersFromConfigFlag(), 0); err != nil {
		return fmt.Errorf("connecting to mcp servers: %w", err)
	}
	mcpGateway := mcpgateway.New(sessions)
	defer mcpGateway.CloseAll()

	exec := executor.New(executor.Config{
		Catalogue:         cat,
		HTTP:              httpgateway.New(nil),
		MCP:               mcpGateway,
		FilesystemEnabled: executor.DefaultFilesystemEnabled,
		FilesystemConfig:  fsfacet.Config{Root: sandboxRoot},
	})

	result, err := exec.Run(ctx, executor.Request{Script: string(script)})
	if err != nil {
		return fmt.Errorf("executing script: %w", err)
	}

	out := struct {
		Result any      `json:"result"`
		Logs   []string `json:"logs"`
	}{Result: result.Value, Logs: result.Logs}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	for _, f := range result.FilesTouched {
		logger.Infow("file touched", "name", f.Name, "op", f.Op, "bytes", f.Bytes)
	}
	return nil
}

