package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	serveradapter "github.com/therockpusher/taskweaver/internal/adapters/server"
	servercommon "github.com/therockpusher/taskweaver/internal/adapters/server/common"
	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/config"
	"github.com/therockpusher/taskweaver/internal/tui"
)

func dataCommands(opts *rootOptions) []*cobra.Command {
	return []*cobra.Command{
		newPathsCommand(opts),
		newConfigCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newServeCommand(opts),
		newTUICommand(opts),
	}
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, configPath, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return writeFields(opts.stdout, [][2]string{
				{"app", opts.appName},
				{"dev_mode", fmt.Sprintf("%t", opts.devMode)},
				{"config", configPath},
				{"data_dir", paths.DataDir},
				{"db", cfg.Database.Path},
				{"snapshots", paths.SnapshotDir},
			})
		},
	}
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the TOML config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			path := opts.resolveConfigPath(paths)
			if err := config.WriteDefault(path, config.Default(paths.DBPath), force); err != nil {
				return err
			}
			_, err = fmt.Fprintf(opts.stdout, "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task and edge to a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService("export", func(env *runtimeEnv) error {
				snapFormat, err := snapshotFormat(format, outPath, env.cfg.Snapshot.Format)
				if err != nil {
					return err
				}
				snap, err := env.svc.ExportSnapshot(cmd.Context())
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := app.EncodeSnapshot(snap, snapFormat)
				if err != nil {
					return err
				}
				if outPath == "-" {
					if _, err := opts.stdout.Write(encoded); err != nil {
						return fmt.Errorf("write snapshot to stdout: %w", err)
					}
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				env.logger.Info("snapshot exported", "path", outPath, "format", snapFormat, "tasks", len(snap.Tasks), "dependencies", len(snap.Dependencies))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "", "json or cbor (default from config, or the --out extension)")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath, format string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the store contents with a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			ctx := cmd.Context()
			return opts.withService("import", func(env *runtimeEnv) error {
				snapFormat, err := snapshotFormat(format, inPath, env.cfg.Snapshot.Format)
				if err != nil {
					return err
				}
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				snap, err := app.DecodeSnapshot(content, snapFormat)
				if err != nil {
					return err
				}
				if err := env.svc.ImportSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				env.logger.Info("snapshot imported", "path", inPath, "tasks", len(snap.Tasks), "dependencies", len(snap.Dependencies))
				// Imported edges bypass the cycle guard; report loops now rather than on first read.
				if err := env.svc.VerifyGraph(ctx); err != nil {
					return fmt.Errorf("imported graph: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "input snapshot file")
	cmd.Flags().StringVar(&format, "format", "", "json or cbor (default from the --in extension, then config)")
	return cmd
}

// snapshotFormat prefers the explicit flag, then a .cbor/.json file extension, then config.
func snapshotFormat(flag, path, configured string) (app.SnapshotFormat, error) {
	if strings.TrimSpace(flag) != "" {
		return app.ParseSnapshotFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return app.SnapshotFormatCBOR, nil
	case ".json":
		return app.SnapshotFormatJSON, nil
	}
	return app.ParseSnapshotFormat(configured)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP tools and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService("serve", func(env *runtimeEnv) error {
				flags := cmd.Flags()
				cfg := serveradapter.Config{
					HTTPBind:      env.cfg.Server.HTTPBind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
				}
				if flags.Changed("http") {
					cfg.HTTPBind = httpBind
				}
				if flags.Changed("api-endpoint") {
					cfg.APIEndpoint = apiEndpoint
				}
				if flags.Changed("mcp-endpoint") {
					cfg.MCPEndpoint = mcpEndpoint
				}
				return runServe(cmd.Context(), env, cfg)
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

// runServe wires metrics, readiness and the logging adapter, then blocks until ctx ends.
func runServe(ctx context.Context, env *runtimeEnv, cfg serveradapter.Config) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	adapter := servercommon.NewAppServiceAdapter(env.svc, env.logger, servercommon.NewMetrics(registry))

	env.logger.Info("serving", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	err := serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
		Service: adapter,
		Metrics: registry,
		Ready: func(ctx context.Context) error {
			_, err := env.repo.SchemaVersion(ctx)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	env.logger.Info("server stopped")
	return nil
}

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the ranked dependency board (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runTUI(cmd.Context())
		},
	}
}

// runTUI opens the board with console logging muted.
func (o *rootOptions) runTUI(ctx context.Context) error {
	env, err := o.open("tui", true)
	if err != nil {
		return err
	}
	defer env.close(o.stderr)

	if err := env.svc.VerifyGraph(ctx); err != nil {
		logCommandError(env.logger, "tui", err)
		return err
	}
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(tui.NewModel(env.svc)).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}
