package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/history"
	"github.com/teslashibe/go-attend/pkg/metrics"
	"github.com/teslashibe/go-attend/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk server",
	Long: `Run the kiosk server. The browser UI drives the capture session through
the REST API and follows it over /ws/status and /ws/camera.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Address to listen on (default $ATTEND_LISTEN or :8090)")
	serveCmd.Flags().String("static", "", "Directory with UI assets to serve at /")
	serveCmd.Flags().Bool("preload", true, "Load the detection model before accepting sessions")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegisterDefault()

	p := newPipeline(cfg)
	defer p.Close()

	if mustGetBool(cmd, "preload") {
		if err := p.adapter.EnsureReady(ctx); err != nil {
			// Sessions retry the load on start.
			log.Warn("model preload failed", "error", err)
		}
	}

	webCfg := web.DefaultConfig()
	webCfg.Listen = cfg.Listen
	if v := mustGetString(cmd, "listen"); v != "" {
		webCfg.Listen = v
	}
	webCfg.StaticDir = mustGetString(cmd, "static")

	hist := history.NewClient(cfg.APIURL, p.store, nil)
	watcher := history.NewWatcher(hist, p.submitter.Refreshes(), nil)

	srv := web.NewServer(webCfg, p.ctrl, nil, web.WithHistory(hist), web.WithWatcher(watcher))
	err := srv.Run(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err == nil {
		log.Info("kiosk stopped")
	}
	return err
}
