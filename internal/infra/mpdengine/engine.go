// Package mpdengine adapts an MPD server to the playback engine interface.
// MPD owns decoding and output; this adapter maps the byte-oriented engine
// surface onto MPD's time-oriented status.
package mpdengine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrSpeechUnsupported is returned by ConnectToSpeech: MPD has no speech
// synthesis.
var ErrSpeechUnsupported = errors.New("mpdengine: speech output not supported")

// statusMaxAge bounds how stale the cached MPD status may get before Loop
// refreshes it.
const statusMaxAge = 250 * time.Millisecond

// Config holds the MPD connection parameters and the volume scale mapping.
type Config struct {
	Host     string
	Port     int
	Password string
	// MusicRoot is the local path of MPD's music directory. Track paths below
	// it are translated to MPD URIs; paths outside it pass through untouched.
	MusicRoot string
	// MaxVolumeStep is the top of the appliance volume scale, mapped to MPD's
	// 100 percent.
	MaxVolumeStep int
}

func (c *Config) withDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6600
	}
	if c.MaxVolumeStep <= 0 {
		c.MaxVolumeStep = 21
	}
}

// Engine is the MPD-backed playback engine. All methods are safe for
// concurrent use, though in practice only the playback task calls them.
type Engine struct {
	mu     sync.Mutex
	client *mpd.Client
	cfg    Config

	// cached status, refreshed by Loop
	statusAt    time.Time
	stateAttr   string
	elapsed     float64
	duration    float64
	bitrateKbps int

	active        bool // a track was started and not stopped by us
	stopRequested bool
	finished      bool
	monoLogged    bool
}

// New creates the engine. The MPD connection is established lazily.
func New(cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{cfg: cfg}
}

// Close closes the MPD connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

func (e *Engine) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}
	if e.cfg.Password != "" {
		if err := client.Command("password %s", e.cfg.Password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}
	e.client = client
	return nil
}

func (e *Engine) ensureConnectedLocked() error {
	if e.client == nil {
		return e.connectLocked()
	}
	if err := e.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		e.client.Close()
		e.client = nil
		return e.connectLocked()
	}
	return nil
}

// uri translates a local track path into the URI MPD expects.
func (e *Engine) uri(path string) string {
	if e.cfg.MusicRoot == "" {
		return path
	}
	rel, err := filepath.Rel(e.cfg.MusicRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// ConnectToFile clears the MPD queue and starts playing the given file.
func (e *Engine) ConnectToFile(path string) error {
	return e.startItem(e.uri(path))
}

// ConnectToHost clears the MPD queue and starts streaming the given URL.
func (e *Engine) ConnectToHost(url string) error {
	return e.startItem(url)
}

// ConnectToSpeech is not supported by the MPD backend.
func (e *Engine) ConnectToSpeech(text, lang string) error {
	return ErrSpeechUnsupported
}

func (e *Engine) startItem(uri string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureConnectedLocked(); err != nil {
		return err
	}
	if err := e.client.Clear(); err != nil {
		return err
	}
	if err := e.client.Add(uri); err != nil {
		return fmt.Errorf("failed to queue %s: %w", uri, err)
	}
	if err := e.client.Play(0); err != nil {
		return fmt.Errorf("failed to start %s: %w", uri, err)
	}

	e.active = true
	e.stopRequested = false
	e.finished = false
	e.refreshStatusLocked(true)
	return nil
}

// Stop halts playback and clears the queue.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopRequested = true
	e.active = false
	e.finished = false

	if err := e.ensureConnectedLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to reach MPD for stop")
		return
	}
	if err := e.client.Stop(); err != nil {
		log.Error().Err(err).Msg("MPD stop failed")
	}
	if err := e.client.Clear(); err != nil {
		log.Error().Err(err).Msg("MPD clear failed")
	}
	e.stateAttr = "stop"
}

// PauseResume toggles between pause and play.
func (e *Engine) PauseResume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureConnectedLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to reach MPD for pause toggle")
		return
	}
	e.refreshStatusLocked(true)

	var err error
	if e.stateAttr == "play" {
		err = e.client.Pause(true)
	} else {
		err = e.client.Pause(false)
	}
	if err != nil {
		log.Error().Err(err).Msg("MPD pause toggle failed")
		return
	}
	e.refreshStatusLocked(true)
}

// SetVolume maps the appliance volume step onto MPD's percent scale.
func (e *Engine) SetVolume(v int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	percent := v * 100 / e.cfg.MaxVolumeStep
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	if err := e.ensureConnectedLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to reach MPD for volume change")
		return
	}
	if err := e.client.SetVolume(percent); err != nil {
		log.Error().Err(err).Int("percent", percent).Msg("MPD volume change failed")
	}
}

// SetMono is not supported by MPD; output channel layout is configured on
// the MPD side.
func (e *Engine) SetMono(on bool) {
	if !e.monoLogged {
		log.Warn().Msg("Mono switching is configured in MPD, ignoring request")
		e.monoLogged = true
	}
}

// SetFilePos seeks to an absolute byte offset, approximated through the
// stream bitrate.
func (e *Engine) SetFilePos(pos uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureConnectedLocked(); err != nil {
		return err
	}
	e.refreshStatusLocked(true)
	if e.bitrateKbps <= 0 {
		return fmt.Errorf("mpdengine: bitrate unknown, cannot seek to byte %d", pos)
	}

	seconds := float64(pos) * 8 / float64(e.bitrateKbps*1000)
	if err := e.client.SeekCur(time.Duration(seconds*float64(time.Second)), false); err != nil {
		return fmt.Errorf("mpdengine: seek failed: %w", err)
	}
	e.refreshStatusLocked(true)
	return nil
}

// SetTimeOffset seeks relative by the given number of seconds.
func (e *Engine) SetTimeOffset(seconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureConnectedLocked(); err != nil {
		return err
	}
	if err := e.client.SeekCur(time.Duration(seconds)*time.Second, true); err != nil {
		return fmt.Errorf("mpdengine: relative seek failed: %w", err)
	}
	e.refreshStatusLocked(true)
	return nil
}

// FilePos approximates the byte position from elapsed time and bitrate.
func (e *Engine) FilePos() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(e.elapsed * float64(e.bitrateKbps) * 1000 / 8)
}

// FileSize approximates the file size from duration and bitrate.
func (e *Engine) FileSize() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(e.duration * float64(e.bitrateKbps) * 1000 / 8)
}

// BufferFilled is always zero: MPD reports the played position directly,
// there is no client-side decode buffer to subtract.
func (e *Engine) BufferFilled() uint32 {
	return 0
}

// CurrentTime returns the seconds played of the current item.
func (e *Engine) CurrentTime() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(e.elapsed)
}

// IsRunning reports whether MPD is playing or paused.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateAttr == "play" || e.stateAttr == "pause"
}

// TrackFinished reports (and clears) whether the current item reached its
// natural end since the last call.
func (e *Engine) TrackFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.finished
	e.finished = false
	return f
}

// Loop refreshes the cached MPD status when it has gone stale.
func (e *Engine) Loop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshStatusLocked(false)
}

func (e *Engine) refreshStatusLocked(force bool) {
	if !force && time.Since(e.statusAt) < statusMaxAge {
		return
	}
	if err := e.ensureConnectedLocked(); err != nil {
		return
	}

	status, err := e.client.Status()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read MPD status")
		return
	}

	prev := e.stateAttr
	e.statusAt = time.Now()
	e.stateAttr = status["state"]
	e.elapsed, _ = strconv.ParseFloat(status["elapsed"], 64)
	e.duration, _ = strconv.ParseFloat(status["duration"], 64)
	if br, err := strconv.Atoi(status["bitrate"]); err == nil && br > 0 {
		e.bitrateKbps = br
	}

	// A play-to-stop transition without an explicit stop means the item
	// reached its natural end.
	if e.active && !e.stopRequested && prev == "play" && e.stateAttr == "stop" {
		e.finished = true
		e.active = false
	}
}
