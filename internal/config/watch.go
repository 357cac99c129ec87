package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchlistSnapshot is the hot-reloadable slice of the configuration.
type WatchlistSnapshot struct {
	Symbols  []string
	LoadedAt time.Time
}

// WatchlistListener fires after a successful reload.
type WatchlistListener func(WatchlistSnapshot)

// Watcher re-reads the watchlist section when the config file changes
// on disk. Everything else in the file is startup-only: risk settings
// must not silently move under a running position.
type Watcher struct {
	v *viper.Viper

	mu        sync.RWMutex
	snapshot  WatchlistSnapshot
	listeners []WatchlistListener
}

// NewWatcher starts watching path. The initial snapshot comes from the
// already-validated Config so the watcher can never regress below it.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config watcher read failed: %w", err)
	}
	w := &Watcher{
		v: v,
		snapshot: WatchlistSnapshot{
			Symbols:  normalizeSymbols(initial.Watchlist.Symbols),
			LoadedAt: time.Now(),
		},
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("watchlist reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Snapshot returns the current watchlist.
func (w *Watcher) Snapshot() WatchlistSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := w.snapshot
	out.Symbols = append([]string(nil), w.snapshot.Symbols...)
	return out
}

// OnChange registers a listener for future reloads.
func (w *Watcher) OnChange(fn WatchlistListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) reload() error {
	if err := w.v.ReadInConfig(); err != nil {
		return err
	}
	symbols := normalizeSymbols(w.v.GetStringSlice("watchlist.symbols"))
	if len(symbols) == 0 {
		return fmt.Errorf("reloaded watchlist is empty, keeping previous")
	}
	snap := WatchlistSnapshot{Symbols: symbols, LoadedAt: time.Now()}

	w.mu.Lock()
	w.snapshot = snap
	listeners := append([]WatchlistListener(nil), w.listeners...)
	w.mu.Unlock()

	logger.Infof("watchlist reloaded: %v", symbols)
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
