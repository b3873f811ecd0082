package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promptman/internal/actuator"
	"promptman/internal/animation"
	"promptman/internal/api"
	"promptman/internal/autostart"
	"promptman/internal/config"
	"promptman/internal/engine"
	"promptman/internal/enhance"
	"promptman/internal/gemini"
	"promptman/internal/hook"
	"promptman/internal/input"
	"promptman/internal/osutils"
	"promptman/internal/rules"
	"promptman/internal/tray"
	"promptman/internal/ui"
	"promptman/internal/usage"
)

// openStore opens the configured rule backend and loads it. The returned
// func releases the backend.
func (a *app) openStore() (*rules.Store, func(), error) {
	cfg := a.cfgMgr.Get()
	path := a.cfgMgr.RulesPath()
	log := a.log.Named("rules")

	var (
		backend rules.Backend
		closer  = func() {}
	)
	switch cfg.General.RulesBackend {
	case "sqlite":
		db, err := rules.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		backend = db
		closer = func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close rule database", zap.Error(err))
			}
		}
	default:
		backend = rules.NewFileBackend(path)
	}

	store := rules.NewStore(backend, log)
	if err := store.Load(); err != nil {
		log.Warn("Could not load rules, starting empty", zap.String("path", path), zap.Error(err))
	}
	return store, closer, nil
}

func (a *app) runService(ctx context.Context, withTray bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfgMgr.Get()
	log := a.log
	log.Info("promptman starting", zap.String("version", version), zap.String("config", a.cfgMgr.Path()))
	for _, hint := range osutils.InputHints() {
		log.Warn("Keyboard access may be limited", zap.String("hint", hint))
	}

	if cfg.General.StartOnBoot && !autostart.IsEnabled() {
		if err := autostart.Enable(); err != nil {
			log.Warn("Failed to enable start on boot", zap.Error(err))
		}
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("Rules loaded", zap.Int("count", store.Len()), zap.String("backend", cfg.General.RulesBackend))

	injector, err := input.NewInjector()
	if err != nil {
		return fmt.Errorf("keyboard injector: %w", err)
	}
	if c, ok := any(injector).(io.Closer); ok {
		defer c.Close()
	}

	act := actuator.New(injector, cfg.Engine.BackspacePace.Duration)
	indicator := animation.New(act, animation.Options{
		Glyph:     cfg.Engine.Glyph,
		MaxSpaces: cfg.Engine.MaxSpaces,
		Frame:     cfg.Engine.FrameDelay.Duration,
		StopWait:  cfg.Engine.StopWait.Duration,
		Pace:      animation.DefaultOptions().Pace,
	}, log.Named("indicator"))

	rewriter := gemini.New(cfg.Rewriter.Model, log.Named("gemini"))
	if key := cfg.APIKey(); key != "" {
		if err := rewriter.Configure(ctx, key); err != nil {
			log.Warn("Gemini not available", zap.Error(err))
		}
	} else {
		log.Info("Gemini API key not set, enhancement disabled until configured",
			zap.String("env", cfg.Rewriter.APIKeyEnv))
	}

	var server atomic.Pointer[api.Server]

	pipeline := enhance.New(act, indicator, rewriter, enhance.Options{
		Timeout: cfg.Engine.EnhanceTimeout.Duration,
		OnState: func(id string, s enhance.State) {
			if srv := server.Load(); srv != nil {
				srv.BroadcastEnhance(id, s)
			}
		},
	}, log.Named("enhance"))
	defer pipeline.Close()

	tracker := usage.NewTracker(cfg.Usage.Recent)
	notifier := usage.Multi{tracker}
	if cfg.Usage.Endpoint != "" {
		remote := usage.NewHTTPNotifier(cfg.Usage.Endpoint, cfg.General.APIToken, cfg.Usage.Timeout.Duration, log.Named("usage"))
		defer remote.Wait()
		notifier = append(notifier, remote)
	}

	eng := engine.New(store, act, pipeline, notifier, engine.Options{
		Sentinel:  cfg.Engine.Sentinel,
		BufferCap: cfg.Engine.BufferCap,
	}, log.Named("engine"))

	var tr atomic.Pointer[tray.Tray]
	setPaused := func(paused bool) {
		eng.SetPaused(paused)
		if srv := server.Load(); srv != nil {
			srv.BroadcastListener(paused)
		}
		if t := tr.Load(); t != nil {
			t.SetPaused(paused)
		}
	}
	openSettings := func() {
		if !cfg.General.APIEnabled {
			log.Warn("Settings page needs the API server, enable api_enabled")
			return
		}
		if err := ui.OpenBrowser(ui.URL(cfg.General.APIPort, cfg.General.APIToken)); err != nil {
			log.Warn("Failed to open settings page", zap.Error(err))
		}
	}

	hotkeys := hook.NewHotkeys(log.Named("hotkeys"))
	hotkeys.Register(cfg.General.PauseHotkey, func() { setPaused(!eng.Paused()) })
	hotkeys.Register(cfg.General.SettingsHotkey, openSettings)
	listener := hook.NewListener(hotkeys, log.Named("hook"))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.General.APIEnabled {
		srv := api.NewServer(api.Options{
			Store:    store,
			Tracker:  tracker,
			Rewriter: rewriter,
			Engine:   pauser{eng: eng, set: setPaused},
			SaveAPIKey: func(key string) error {
				return config.SaveAPIKey(a.cfgMgr.EnvPath(), cfg.Rewriter.APIKeyEnv, key)
			},
			Hooked:    listener.Running,
			Enhancing: pipeline.Busy,
			Token:     cfg.General.APIToken,
			UI:        ui.Handler(ui.Page{Version: version}),
			Version:   version,
		}, log.Named("api"))
		server.Store(srv)
		defer srv.Close()
		g.Go(func() error {
			// The service keeps expanding without the settings page.
			if err := srv.ListenAndServe(gctx, cfg.General.APIPort); err != nil {
				log.Error("API server stopped", zap.Error(err))
			}
			return nil
		})
	}

	if cfg.General.WatchRules && cfg.General.RulesBackend != "sqlite" {
		watcher := rules.NewWatcher(store, a.cfgMgr.RulesPath(), log.Named("watcher"))
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Rule watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := listener.Start(); err != nil {
		cancel()
		g.Wait()
		return fmt.Errorf("keyboard hook: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return listener.Stop()
	})
	g.Go(func() error {
		return eng.Run(gctx, listener.Events())
	})
	log.Info("Listening for shortcuts", zap.String("sentinel", cfg.Engine.Sentinel))

	if withTray {
		t := tray.New("promptman: text expansion", tray.Actions{
			SetPaused:    setPaused,
			OpenSettings: openSettings,
			Quit:         cancel,
		}, log.Named("tray"))
		tr.Store(t)
		go func() {
			<-gctx.Done()
			t.Stop()
		}()
		t.Run()
		cancel()
	}

	err = g.Wait()
	log.Info("promptman stopped")
	return err
}

// pauser routes API pause requests through the same path as the tray and
// hotkey so every surface stays in sync.
type pauser struct {
	eng *engine.Engine
	set func(bool)
}

func (p pauser) SetPaused(paused bool) { p.set(paused) }
func (p pauser) Paused() bool          { return p.eng.Paused() }
