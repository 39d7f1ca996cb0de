// Package main is the entry point for the fablebox story-teller daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fablebox/fablebox/internal/config"
	"github.com/fablebox/fablebox/internal/domain/control"
	"github.com/fablebox/fablebox/internal/domain/dispatch"
	"github.com/fablebox/fablebox/internal/domain/playback"
	"github.com/fablebox/fablebox/internal/domain/system"
	"github.com/fablebox/fablebox/internal/domain/tags"
	"github.com/fablebox/fablebox/internal/infra/fswatch"
	"github.com/fablebox/fablebox/internal/infra/indication"
	"github.com/fablebox/fablebox/internal/infra/mpdengine"
	"github.com/fablebox/fablebox/internal/infra/netinfo"
	"github.com/fablebox/fablebox/internal/infra/nvs"
	"github.com/fablebox/fablebox/internal/infra/tagreader"
	"github.com/fablebox/fablebox/internal/transport/socketio"
	"github.com/fablebox/fablebox/internal/version"
)

// notifyRelay lets components created before the transport notify it once it
// exists.
type notifyRelay struct {
	mu     sync.RWMutex
	target playback.Notifier
}

func (r *notifyRelay) Set(n playback.Notifier) {
	r.mu.Lock()
	r.target = n
	r.mu.Unlock()
}

func (r *notifyRelay) StateChanged() {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target != nil {
		target.StateChanged()
	}
}

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	musicRoot := flag.String("music", "", "Music library root (overrides config)")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *musicRoot != "" {
		cfg.MusicRoot = *musicRoot
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *debug || cfg.LogLevel == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  RFID story-teller daemon")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("music", cfg.MusicRoot).
		Str("mpd_host", cfg.MPD.Host).
		Int("mpd_port", cfg.MPD.Port).
		Str("tag_input", cfg.TagInput).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings store and tag registry
	store := nvs.NewStore(cfg.NVSPath)
	if err := store.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings store")
	}
	defer store.Close()
	registry := tags.NewRegistry(store)

	// Playback core
	state := playback.NewState()
	volumeQ := playback.NewMailbox[int]()
	controlQ := playback.NewMailbox[playback.TrackCommand]()
	playlistQ := playback.NewMailbox[[]string]()

	engine := mpdengine.New(mpdengine.Config{
		Host:          cfg.MPD.Host,
		Port:          cfg.MPD.Port,
		Password:      cfg.MPD.Password,
		MusicRoot:     cfg.MusicRoot,
		MaxVolumeStep: cfg.Volume.Max,
	})
	defer engine.Close()

	indicator := indication.Log{}
	network := netinfo.Host{}
	relay := &notifyRelay{}

	manager := system.NewManager(time.Duration(cfg.InactivityMinutes)*time.Minute, func() {
		// Sleep on this appliance means a clean daemon shutdown; the service
		// manager keeps it stopped until the next wake trigger.
		controlQ.Put(playback.Stop)
		cancel()
	})
	defer manager.Close()

	executor := control.NewExecutor(state, volumeQ, controlQ, manager, indicator, relay, control.VolumeRange{
		Min:     cfg.Volume.Min,
		Max:     cfg.Volume.Max,
		Initial: cfg.Volume.Initial,
	})

	dispatcher := dispatch.NewDispatcher(state, registry, playlistQ, executor, network, indicator, relay, cfg.MusicRoot)

	task := playback.NewTask(state, engine, volumeQ, controlQ, playlistQ, dispatcher,
		indicator, manager, network, relay, playback.Config{
			CycleInterval:             time.Duration(cfg.Playback.CycleIntervalMs) * time.Millisecond,
			SeekJumpSeconds:           cfg.Playback.SeekJumpSeconds,
			PrevTrackThresholdSeconds: uint32(cfg.Playback.PrevTrackThresholdSeconds),
			NotRunningDebounceCycles:  cfg.Playback.NotRunningDebounceCycles,
			SpeechLanguage:            cfg.Playback.SpeechLanguage,
		})

	// Socket.io transport
	socketServer, err := socketio.NewServer(state, executor, dispatcher, registry, cfg.MaxExternalClients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()
	relay.Set(socketServer)

	// Library watcher keeps playlist caches honest
	watcher, err := fswatch.New(cfg.MusicRoot)
	if err != nil {
		log.Warn().Err(err).Msg("Library watcher unavailable, playlist caches will not auto-invalidate")
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	// Physical tag scans
	reader := tagreader.New(cfg.TagInput, dispatcher)
	go reader.Run(ctx)

	go task.Run(ctx)

	// Boot volume
	state.Update(func(s *playback.State) { s.Volume = cfg.Volume.Initial })
	volumeQ.Put(cfg.Volume.Initial)

	// HTTP surface
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	mux.HandleFunc("/api/v1/getState", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state.Snapshot())
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down...")
			cancel()
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}
