package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/simonyos/mango/internal/bridge"
	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/page"
	"github.com/simonyos/mango/internal/settings"
)

// session is everything a front end needs to run turns: settings, a
// coordinator bound to a dispatcher, and a messenger for page requests.
type session struct {
	cfg       *config.Config
	log       *slog.Logger
	store     *settings.Store
	coord     *chat.Coordinator
	messenger bridge.Messenger
	link      string
	cleanup   []func()
}

// bridgeMode returns the --bridge flag or the configured mode.
func bridgeMode(cfg *config.Config) string {
	if bridgeFlag != "" {
		return bridgeFlag
	}
	return cfg.Bridge.Mode
}

func natsConfig(cfg *config.Config) bridge.NATSConfig {
	nc := bridge.DefaultNATSConfig()
	nc.URL = cfg.NATS.URL
	nc.Token = cfg.NATS.Token
	nc.CredsFile = cfg.NATS.CredsFile
	return nc
}

func newMultiplexer(cfg *config.Config, log *slog.Logger) *chat.Multiplexer {
	return chat.NewMultiplexer(llm.New, chat.WithTurnTimeout(cfg.TurnTimeout), chat.WithLogger(log))
}

func portName(cfg *config.Config) string {
	if cfg.Bridge.Port == "" {
		return bridge.DefaultPortName
	}
	return cfg.Bridge.Port
}

// openSession wires a session. In local mode with viaPort set, turns go
// through an in-process host over a memory port, the same path the nats mode
// takes over the broker. Without viaPort they run on a local multiplexer.
func openSession(ctx context.Context, cfg *config.Config, log *slog.Logger, viaPort bool) (*session, error) {
	store, err := settings.Open(settings.DefaultPath(cfg.DataDir))
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, store: store}
	s.cleanup = append(s.cleanup, func() { store.Close() })

	var dispatcher chat.Dispatcher
	switch mode := bridgeMode(cfg); mode {
	case config.BridgeNATS:
		nc, err := bridge.Connect(natsConfig(cfg), "mango-panel", log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.cleanup = append(s.cleanup, nc.Close)

		conn, err := bridge.DialNATS(nc, portName(cfg), log)
		if err != nil {
			s.Close()
			return nil, err
		}
		client := bridge.NewClient(conn, log)
		s.cleanup = append(s.cleanup, func() { client.Close() })

		dispatcher = client
		s.messenger = bridge.NewNATSMessenger(nc)
		s.link = nc.ConnectedUrl()

	case config.BridgeLocal, "":
		mux := newMultiplexer(cfg, log)
		messenger := bridge.NewLocalMessenger()
		messenger.Handle(bridge.MessagePage, bridge.PageHandler(page.NewExtractor(nil, log)))
		s.messenger = messenger
		s.link = config.BridgeLocal

		if !viaPort {
			dispatcher = chat.LocalDispatcher{Mux: mux}
			break
		}

		hostCtx, cancel := context.WithCancel(ctx)
		l := bridge.NewMemoryListener(portName(cfg))
		served := make(chan struct{})
		go func() {
			defer close(served)
			if err := bridge.NewHost(mux, log).Serve(hostCtx, l); err != nil {
				log.Error("in-process host stopped", "error", err)
			}
		}()

		conn, err := l.Dial(ctx)
		if err != nil {
			cancel()
			s.Close()
			return nil, err
		}
		client := bridge.NewClient(conn, log)
		s.cleanup = append(s.cleanup, func() {
			client.Close()
			cancel()
			l.Close()
			<-served
		})
		dispatcher = client

	default:
		s.Close()
		return nil, fmt.Errorf("unknown bridge mode %q", mode)
	}

	s.coord = chat.NewCoordinator(chat.CoordinatorConfig{
		Settings:      store,
		Dispatcher:    dispatcher,
		DefaultPrompt: orDefault(cfg.SystemPrompt, settings.DefaultSystemPrompt),
		SummaryPrompt: orDefault(cfg.SummaryPrompt, settings.DefaultSummaryPrompt),
		HistoryLimit:  cfg.HistoryLimit,
		Logger:        log,
	})
	return s, nil
}

// Close releases the session in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
