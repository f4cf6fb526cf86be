package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/cmd/promptgate/storepath"
	"github.com/papercomputeco/promptgate/pkg/config"
	"github.com/papercomputeco/promptgate/pkg/logger"
	"github.com/papercomputeco/promptgate/proxy"
)

const serveLongDesc string = `Run the promptgate HTTP gateway in front of Ollama.

Configuration is read from an optional TOML file, then PROMPTGATE_*
environment variables, then the flags below; later sources win.

Examples:
  promptgate serve
  promptgate serve --upstream http://gpu-box:11434 --listen :9000
  promptgate serve --config /etc/promptgate.toml --store redis://localhost:6379/0`

const serveShortDesc string = "Run the gateway server"

// shutdownTimeout bounds how long open connections may keep the process up
// after a signal.
const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	configPath string
	listen     string
	upstream   string
	timeout    time.Duration
	staticDir  string
	store      string
	debug      bool
	jsonLogs   bool
}

func NewServeCmd() *cobra.Command {
	cmd, _ := newServeCmd()
	return cmd
}

func newServeCmd() (*cobra.Command, *serveCommander) {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", config.DefaultListen, "Address to listen on")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", config.DefaultUpstream, "Ollama base URL")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", config.DefaultTimeout, "Timeout for one upstream exchange")
	cmd.Flags().StringVar(&cmder.staticDir, "static", config.DefaultStatic, "Directory holding the web UI")
	cmd.Flags().StringVarP(&cmder.store, "store", "s", "", "Settings and prompt store (path, directory, redis:// URL or \"memory\")")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log as JSON")

	return cmd, cmder
}

// resolveConfig layers explicitly set flags over the file and environment.
func (c *serveCommander) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = c.listen
	}
	if flags.Changed("upstream") {
		cfg.Upstream = c.upstream
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration{Duration: c.timeout}
	}
	if flags.Changed("static") {
		cfg.StaticDir = c.staticDir
	}
	if flags.Changed("store") {
		cfg.Store = c.store
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = c.debug
	}
	if flags.Changed("json-logs") {
		cfg.Log.JSON = c.jsonLogs
	}

	return cfg, nil
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.resolveConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Options{Debug: cfg.Log.Debug, JSON: cfg.Log.JSON})
	defer log.Sync()

	location, err := storepath.Resolve(cfg.Store)
	if err != nil {
		return fmt.Errorf("could not resolve store: %w", err)
	}

	store, err := storepath.Open(ctx, location, log)
	if err != nil {
		return fmt.Errorf("could not open store %s: %w", location, err)
	}
	defer store.Close()

	log.Info("promptgate starting",
		zap.String("listen", cfg.Listen),
		zap.String("upstream", cfg.Upstream),
		zap.Duration("timeout", cfg.Timeout.Duration),
		zap.String("store", storepath.Kind(location)),
		zap.Bool("debug", cfg.Log.Debug),
	)

	p, err := proxy.New(proxy.Config{
		ListenAddr:  cfg.Listen,
		UpstreamURL: cfg.Upstream,
		Timeout:     cfg.Timeout.Duration,
		StaticDir:   cfg.StaticDir,
	}, store, log)
	if err != nil {
		return fmt.Errorf("could not create gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := p.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}
