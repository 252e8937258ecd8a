package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	serveradapter "github.com/therockpusher/taskweaver/internal/adapters/server"
	"github.com/therockpusher/taskweaver/internal/adapters/storage/sqlite"
	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/config"
	"github.com/therockpusher/taskweaver/internal/domain"
	"github.com/therockpusher/taskweaver/internal/platform"
)

// version is overridden at build time.
var version = "dev"

// program is the slice of *tea.Program the tui command runs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program; tests swap it for a fake.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(newRootOptions(stdout, stderr))
	root.SetArgs(args)
	root.SetIn(os.Stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	)
}

// rootOptions carries the persistent flags and process streams.
type rootOptions struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootOptions(stdout, stderr io.Writer) *rootOptions {
	opts := &rootOptions{
		stdout:  stdout,
		stderr:  stderr,
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("TASKWEAVER_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("TASKWEAVER_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}
	return opts
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskweaver",
		Short: "Track task dependencies and rank work by downstream impact",
		Long: "taskweaver keeps a dependency graph between tasks acyclic and ranks open\n" +
			"tasks by effective priority: a task inherits the urgency of the work it unblocks.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runTUI(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks"},
		&cobra.Group{ID: "graph", Title: "Dependencies"},
		&cobra.Group{ID: "data", Title: "Data & Runtime"},
	)
	for _, cmd := range taskCommands(opts) {
		cmd.GroupID = "tasks"
		root.AddCommand(cmd)
	}
	for _, cmd := range graphCommands(opts) {
		cmd.GroupID = "graph"
		root.AddCommand(cmd)
	}
	for _, cmd := range dataCommands(opts) {
		cmd.GroupID = "data"
		root.AddCommand(cmd)
	}
	return root
}

// runtimeEnv is the resolved configuration, logger, store and service for one invocation.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// resolvePaths returns the platform paths for the current app name and mode.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolveConfigPath applies --config, TASKWEAVER_CONFIG, ./.taskweaver.toml, then the platform path.
func (o *rootOptions) resolveConfigPath(paths platform.Paths) string {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = ""
	}
	return config.ResolvePath(o.configPath, os.Getenv("TASKWEAVER_CONFIG"), workDir, paths.ConfigPath)
}

// loadConfig resolves paths and loads config without opening the store.
func (o *rootOptions) loadConfig() (platform.Paths, string, config.Config, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return platform.Paths{}, "", config.Config{}, err
	}
	configPath := o.resolveConfigPath(paths)

	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("TASKWEAVER_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return platform.Paths{}, "", config.Config{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	return paths, configPath, cfg, nil
}

// open resolves config, starts logging and opens the sqlite-backed service.
func (o *rootOptions) open(command string, muteConsole bool) (*runtimeEnv, error) {
	paths, configPath, cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if muteConsole {
		// The board owns the terminal; runtime logs go to the dev file only.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		ActiveOnlyPropagation: cfg.Priority.ActiveOnly,
	})
	return &runtimeEnv{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}

// close releases the store and the log file.
func (e *runtimeEnv) close(stderr io.Writer) {
	if e == nil {
		return
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// withService runs fn against an opened environment and logs the command outcome.
func (o *rootOptions) withService(command string, fn func(*runtimeEnv) error) error {
	env, err := o.open(command, false)
	if err != nil {
		return err
	}
	defer env.close(o.stderr)

	env.logger.Debug("command flow start", "command", command)
	if err := fn(env); err != nil {
		logCommandError(env.logger, command, err)
		return err
	}
	env.logger.Debug("command flow complete", "command", command)
	return nil
}

// logCommandError keeps rejected requests quiet and reports store corruption loudly.
func logCommandError(logger *runtimeLogger, command string, err error) {
	var inconsistent *domain.GraphInconsistentError
	var cycle *domain.CycleError
	switch {
	case errors.As(err, &inconsistent):
		logger.Error("dependency graph inconsistent", "command", command, "task_ids", inconsistent.TaskIDs)
	case errors.As(err, &cycle):
		logger.Debug("dependency rejected", "command", command, "path", cycle.Path)
	default:
		logger.Debug("command flow failed", "command", command, "err", err)
	}
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
