package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/simonyos/mango/internal/logging"
)

const watchDebounce = 100 * time.Millisecond

// Watch reloads the config file whenever it changes and calls onChange with
// the previous and new values. It blocks until ctx is done. Read errors and
// handler panics are logged to log and the previous config stays in place.
//
// viper cannot stop its watcher, so changes arriving after ctx is done are
// ignored rather than unwatched.
func Watch(ctx context.Context, log *slog.Logger, onChange func(old, new *Config)) error {
	log = logging.OrDiscard(log)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		debounceMu    sync.Mutex
		debounceTimer *time.Timer
		stopped       bool
	)

	v := newViper(viper.WithLogger(log))
	v.OnConfigChange(func(ev fsnotify.Event) {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if stopped {
			return
		}
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(watchDebounce, func() {
			reload(log, onChange)
		})
		log.Debug("config file changed", "file", ev.Name, "op", ev.Op.String())
	})
	v.WatchConfig()

	<-ctx.Done()

	debounceMu.Lock()
	stopped = true
	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceMu.Unlock()
	return nil
}

func reload(log *slog.Logger, onChange func(old, new *Config)) {
	old := Get()

	cfg, err := read(newViper(viper.WithLogger(log)))
	if err != nil {
		log.Warn("config reload failed, keeping previous config", "file", configFile, "error", err)
		return
	}
	if reflect.DeepEqual(old, cfg) {
		return
	}

	mu.Lock()
	current = cfg
	mu.Unlock()

	if onChange != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("config change handler panicked", "panic", r)
				}
			}()
			onChange(old, cfg)
		}()
	}
}
