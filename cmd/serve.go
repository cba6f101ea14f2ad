package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/bridge"
	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/logging"
	"github.com/simonyos/mango/internal/page"
)

var (
	embeddedFlag bool
	listenFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background host that answers panels over NATS",
	Long: `Run the background host. It listens for panel ports on NATS, runs each
turn against the selected provider and streams the reply back. It also answers
page requests for /summarize.

Panels reach it with bridge.mode set to nats. With --embedded the host starts
its own NATS server, so no broker needs to be installed.

Examples:
  mango serve
  mango serve --embedded --listen 127.0.0.1:4222`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	var level slog.LevelVar
	level.Set(logging.ParseLevel(cfg.LogLevel))
	log := logging.NewDynamic(os.Stderr, &level, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	natsCfg := natsConfig(cfg)
	if embeddedFlag {
		ns, err := startEmbeddedNATS(listenFlag, cfg.NATS.Token)
		if err != nil {
			fail(err)
		}
		defer ns.Shutdown()
		natsCfg.URL = ns.ClientURL()
		log.Info("embedded nats server started", "url", natsCfg.URL)
	}

	nc, err := bridge.Connect(natsCfg, "mango-host", log)
	if err != nil {
		fail(err)
	}
	defer nc.Close()

	mux := newMultiplexer(cfg, log)
	l, err := bridge.ListenNATS(nc, portName(cfg), log)
	if err != nil {
		fail(err)
	}
	defer l.Close()

	sub, err := bridge.ServeMessages(ctx, nc, bridge.MessagePage, bridge.PageHandler(page.NewExtractor(nil, log)), log)
	if err != nil {
		fail(err)
	}
	defer sub.Unsubscribe()

	go func() {
		err := config.Watch(ctx, log, func(prev, next *config.Config) {
			if prev.TurnTimeout != next.TurnTimeout {
				mux.SetTurnTimeout(next.TurnTimeout)
				log.Info("turn timeout changed", "timeout", next.TurnTimeout)
			}
			if prev.LogLevel != next.LogLevel {
				level.Set(logging.ParseLevel(next.LogLevel))
				log.Info("log level changed", "level", next.LogLevel)
			}
			if prev.Bridge != next.Bridge || prev.NATS != next.NATS {
				log.Warn("bridge settings changed; restart serve to apply them")
			}
		})
		if err != nil {
			log.Warn("config watch stopped", "error", err)
		}
	}()

	log.Info("host ready", "url", nc.ConnectedUrl(), "port", portName(cfg))
	if err := bridge.NewHost(mux, log).Serve(ctx, l); err != nil {
		log.Error("host stopped", "error", err)
	}
	log.Info("shutting down", "active_turns", mux.Active())
}

// startEmbeddedNATS runs an in-process NATS server on listen.
func startEmbeddedNATS(listen, token string) (*server.Server, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}

	ns, err := server.NewServer(&server.Options{
		Host:          host,
		Port:          port,
		Authorization: token,
		NoSigs:        true,
		NoLog:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded nats server did not become ready")
	}
	return ns, nil
}

func init() {
	serveCmd.Flags().BoolVar(&embeddedFlag, "embedded", false, "start an in-process NATS server")
	serveCmd.Flags().StringVar(&listenFlag, "listen", "127.0.0.1:4222", "address of the embedded NATS server")
	rootCmd.AddCommand(serveCmd)
}
