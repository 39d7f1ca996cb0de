package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the playback task tunables.
type Config struct {
	// CycleInterval is the decode-step cadence of the task loop.
	CycleInterval time.Duration
	// SeekJumpSeconds is the offset applied by seek-forward/backward requests.
	SeekJumpSeconds int
	// PrevTrackThresholdSeconds: when more than this much of the current track
	// has played, PREVIOUSTRACK restarts the track instead of moving back.
	PrevTrackThresholdSeconds uint32
	// NotRunningDebounceCycles is the number of consecutive cycles the engine
	// may report not-running while a playlist is active before the task
	// force-finishes the current track.
	NotRunningDebounceCycles int
	// SpeechLanguage is passed to the engine for IP announcements.
	SpeechLanguage string
}

func (c *Config) withDefaults() {
	if c.CycleInterval <= 0 {
		c.CycleInterval = 10 * time.Millisecond
	}
	if c.SeekJumpSeconds <= 0 {
		c.SeekJumpSeconds = 30
	}
	if c.PrevTrackThresholdSeconds == 0 {
		c.PrevTrackThresholdSeconds = 5
	}
	if c.NotRunningDebounceCycles <= 0 {
		c.NotRunningDebounceCycles = 200
	}
	if c.SpeechLanguage == "" {
		c.SpeechLanguage = "en"
	}
}

// Task is the single long-running consumer of the volume, track-control and
// playlist mailboxes. It owns the current playlist and is, together with the
// dispatcher's construction window, the only writer of State.
type Task struct {
	state     *State
	engine    Engine
	volumeQ   *Mailbox[int]
	controlQ  *Mailbox[TrackCommand]
	playlistQ *Mailbox[[]string]

	saver     ResumeSaver
	indicator Indicator
	system    SystemControl
	network   Network
	notifier  Notifier
	cfg       Config

	playlist         []string
	notRunningCycles int
}

// NewTask wires the playback task. All collaborators are required except
// saver (no resume persistence) and notifier (defaults to a no-op).
func NewTask(state *State, engine Engine, volumeQ *Mailbox[int], controlQ *Mailbox[TrackCommand],
	playlistQ *Mailbox[[]string], saver ResumeSaver, indicator Indicator,
	system SystemControl, network Network, notifier Notifier, cfg Config) *Task {

	cfg.withDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Task{
		state:     state,
		engine:    engine,
		volumeQ:   volumeQ,
		controlQ:  controlQ,
		playlistQ: playlistQ,
		saver:     saver,
		indicator: indicator,
		system:    system,
		network:   network,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Run executes the task loop until ctx is cancelled or a sleep request stops
// the cycle. Mailbox notifications wake the loop early; the ticker bounds the
// decode-step cadence.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.CycleInterval)
	defer ticker.Stop()

	log.Info().Msg("Playback task started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Playback task stopped")
			return
		case <-t.volumeQ.Notify():
		case <-t.controlQ.Notify():
		case <-t.playlistQ.Notify():
		case <-ticker.C:
		}

		if !t.Cycle() {
			log.Info().Msg("Playback task finished (sleep requested)")
			return
		}
	}
}

// Cycle runs one iteration of the task loop. It returns false when the task
// must stop (sleep after track / track ceiling reached).
func (t *Task) Cycle() bool {
	if v, ok := t.volumeQ.Take(); ok {
		log.Info().Int("volume", v).Msg("New volume received via mailbox")
		t.engine.SetVolume(v)
		t.state.Update(func(s *State) { s.Volume = v })
		t.indicator.VolumeChange()
		t.notifier.StateChanged()
	}

	cmd, _ := t.controlQ.Take()
	if cmd != NoAction {
		log.Info().Str("command", cmd.String()).Msg("New track command received via mailbox")
	}

	if t.engine.TrackFinished() {
		t.state.Update(func(s *State) { s.TrackFinished = true })
	}

	newList, gotList := t.playlistQ.Take()

	finished := false
	t.state.Read(func(s *State) { finished = s.TrackFinished })

	keepRunning := true
	if gotList || finished || cmd != NoAction {
		t.state.Update(func(s *State) {
			keepRunning = t.transitionLocked(s, newList, gotList, cmd)
		})
		t.notifier.StateChanged()
		return keepRunning
	}

	t.serviceCyclic()
	return true
}

// transitionLocked performs the track-transition branch. It runs with the
// state lock held; s is the locked state.
func (t *Task) transitionLocked(s *State, newList []string, gotList bool, cmd TrackCommand) bool {
	if gotList {
		t.engine.Stop()
		// The previous playlist is dropped here; at most one is ever live.
		t.playlist = newList
		s.NumberOfTracks = len(newList)
		log.Info().Int("tracks", len(newList)).Msg("New playlist received")
		t.notRunningCycles = 0
		s.PausePlay = false
		s.TrackFinished = false
		s.PlaylistFinished = false
	}

	if s.TrackFinished {
		s.TrackFinished = false
		if s.PlayMode == NoPlaylist || len(t.playlist) == 0 {
			s.PlaylistFinished = true
			return true
		}
		if s.SaveLastPlayPosition && s.CurrentTrackNumber+1 < len(t.playlist) {
			// Only save mid-playlist; the last track is handled by the
			// exhaustion branch below.
			t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber+1)
		}
		if s.SleepAfterCurrentTrack {
			s.PlaylistFinished = true
			s.PlayMode = NoPlaylist
			s.NumberOfTracks = 0
			t.system.RequestSleep()
			return false
		}
		if !s.RepeatCurrentTrack {
			s.CurrentTrackNumber++
		} else {
			log.Info().Msg("Repeating track due to play mode")
			t.indicator.Rewind()
		}
	}

	if s.PlaylistFinished && cmd != NoAction && s.PlayMode != Busy {
		log.Info().Msg("Track command ignored while idle")
		t.indicator.Error()
		return true
	}

	switch cmd {
	case NoAction:

	case Stop:
		t.engine.Stop()
		log.Info().Msg("Command: stop")
		s.PausePlay = true
		s.PlaylistFinished = true
		s.PlayMode = NoPlaylist
		s.NumberOfTracks = 0
		s.Title = ""
		s.CoverURL = ""
		t.playlist = nil
		return true

	case PausePlay:
		t.engine.PauseResume()
		if s.PausePlay {
			log.Info().Msg("Command: resume from pause")
		} else {
			log.Info().Msg("Command: pause")
		}
		if s.SaveLastPlayPosition && !s.PausePlay {
			// Save the exact byte the listener heard last: the engine's file
			// position minus whatever still sits in the decode buffer.
			pos := t.engine.FilePos() - t.engine.BufferFilled()
			log.Info().Uint32("position", pos).Msg("Track paused, persisting resume position")
			t.saveResume(s, t.playlist[s.CurrentTrackNumber], pos, s.CurrentTrackNumber)
		}
		s.PausePlay = !s.PausePlay
		return true

	case Play:
		if s.PausePlay {
			t.engine.PauseResume()
			s.PausePlay = false
		}
		return true

	case NextTrack:
		t.resumeIfPausedLocked(s)
		t.clearTrackRepeatLocked(s)
		if s.CurrentTrackNumber+1 < len(t.playlist) || s.RepeatPlaylist {
			if s.CurrentTrackNumber+1 >= len(t.playlist) && s.RepeatPlaylist {
				s.CurrentTrackNumber = 0
			} else {
				s.CurrentTrackNumber++
			}
			if s.SaveLastPlayPosition {
				t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber)
			}
			log.Info().Msg("Command: next track")
			if !s.PlaylistFinished {
				t.engine.Stop()
			}
		} else {
			log.Info().Msg("Last track is already active")
			t.indicator.Error()
			return true
		}

	case PreviousTrack:
		t.resumeIfPausedLocked(s)
		t.clearTrackRepeatLocked(s)
		if s.IsWebstream {
			log.Info().Msg("Track change not supported for webstreams")
			t.indicator.Error()
			return true
		}
		if s.PlayMode == LocalM3U {
			if s.CurrentTrackNumber > 0 {
				s.CurrentTrackNumber--
				log.Info().Msg("Command: previous track")
			} else {
				t.indicator.Error()
				return true
			}
			break
		}
		if s.CurrentTrackNumber > 0 || s.RepeatPlaylist {
			if t.engine.CurrentTime() < t.cfg.PrevTrackThresholdSeconds {
				// Early in the track: actually move back. Later: fall through
				// and restart the current track.
				if s.CurrentTrackNumber == 0 && s.RepeatPlaylist {
					s.CurrentTrackNumber = len(t.playlist) - 1
				} else {
					s.CurrentTrackNumber--
				}
			}
			if s.SaveLastPlayPosition {
				t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber)
			}
			log.Info().Msg("Command: previous track")
			if !s.PlaylistFinished {
				t.engine.Stop()
			}
		} else {
			// First track without playlist loop: restart it.
			if s.SaveLastPlayPosition {
				t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber)
			}
			t.engine.Stop()
			t.indicator.Rewind()
			if err := t.engine.ConnectToFile(t.playlist[s.CurrentTrackNumber]); err != nil {
				t.indicator.Error()
				s.TrackFinished = true
				return true
			}
			log.Info().Msg("Restarting first track")
			return true
		}

	case FirstTrack:
		t.resumeIfPausedLocked(s)
		s.CurrentTrackNumber = 0
		if s.SaveLastPlayPosition {
			t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber)
		}
		log.Info().Msg("Command: first track")
		if !s.PlaylistFinished {
			t.engine.Stop()
		}

	case LastTrack:
		t.resumeIfPausedLocked(s)
		if s.CurrentTrackNumber+1 < len(t.playlist) {
			s.CurrentTrackNumber = len(t.playlist) - 1
			if s.SaveLastPlayPosition {
				t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, s.CurrentTrackNumber)
			}
			log.Info().Msg("Command: last track")
			if !s.PlaylistFinished {
				t.engine.Stop()
			}
		} else {
			log.Info().Msg("Last track is already active")
			t.indicator.Error()
			return true
		}

	default:
		log.Warn().Uint8("command", uint8(cmd)).Msg("Unknown track command")
		t.indicator.Error()
		return true
	}

	if s.PlayUntilTrackNumber > 0 && s.CurrentTrackNumber == s.PlayUntilTrackNumber {
		if s.SaveLastPlayPosition {
			t.saveResume(s, t.playlist[s.CurrentTrackNumber], 0, 0)
		}
		log.Info().Int("track", s.CurrentTrackNumber).Msg("Track ceiling reached, going to sleep")
		s.PlaylistFinished = true
		s.PlayMode = NoPlaylist
		s.NumberOfTracks = 0
		t.system.RequestSleep()
		return false
	}

	if s.CurrentTrackNumber >= len(t.playlist) {
		log.Info().Msg("End of playlist reached")
		if !s.RepeatPlaylist {
			if s.SaveLastPlayPosition {
				// Reset the resume record to the first track.
				t.saveResume(s, t.playlist[0], 0, 0)
			}
			s.PlaylistFinished = true
			s.PlayMode = NoPlaylist
			s.NumberOfTracks = 0
			s.Title = ""
			s.CoverURL = ""
			s.CurrentTrackNumber = 0
			if s.SleepAfterPlaylist {
				t.system.RequestSleep()
			}
			return true
		}
		if s.SleepAfterPlaylist || s.SleepAfterCurrentTrack {
			s.PlaylistFinished = true
			s.PlayMode = NoPlaylist
			s.NumberOfTracks = 0
			t.system.RequestSleep()
			return false
		}
		log.Info().Msg("Repeating playlist due to play mode")
		s.CurrentTrackNumber = 0
		if s.SaveLastPlayPosition {
			t.saveResume(s, t.playlist[0], 0, s.CurrentTrackNumber)
		}
	}

	return t.openCurrentTrackLocked(s)
}

// openCurrentTrackLocked connects the engine to the resolved track. An open
// failure is treated like a finished track so the loop retries with the next
// entry instead of dying.
func (t *Task) openCurrentTrackLocked(s *State) bool {
	track := t.playlist[s.CurrentTrackNumber]
	s.IsWebstream = strings.HasPrefix(track, "http")
	s.CurrentRelPos = 0

	var err error
	if s.PlayMode == Webstream || (s.PlayMode == LocalM3U && s.IsWebstream) {
		err = t.engine.ConnectToHost(track)
	} else {
		if _, statErr := os.Stat(track); statErr != nil {
			log.Error().Str("path", track).Msg("Directory or file does not exist")
			s.TrackFinished = true
			return true
		}
		err = t.engine.ConnectToFile(track)
	}
	if err != nil {
		log.Error().Err(err).Str("track", track).Msg("Engine failed to open track")
		t.indicator.Error()
		s.TrackFinished = true
		return true
	}

	if s.CurrentTrackNumber > 0 {
		t.indicator.PlaylistProgress()
	}
	if s.StartAtFilePos > 0 {
		if err := t.engine.SetFilePos(s.StartAtFilePos); err != nil {
			log.Warn().Err(err).Uint32("position", s.StartAtFilePos).Msg("Resume seek failed")
		} else {
			log.Info().Uint32("position", s.StartAtFilePos).Msg("Starting track at saved position")
		}
		s.StartAtFilePos = 0
	}

	title := filepath.Base(track)
	if s.IsWebstream {
		title = "Webradio"
	}
	if len(t.playlist) > 1 {
		s.Title = fmt.Sprintf("(%d/%d): %s", s.CurrentTrackNumber+1, len(t.playlist), title)
	} else {
		s.Title = title
	}
	s.CoverURL = ""
	log.Info().
		Str("track", track).
		Int("number", s.CurrentTrackNumber+1).
		Int("of", len(t.playlist)).
		Msg("Now playing")
	s.PlaylistFinished = false
	t.notRunningCycles = 0
	return true
}

// serviceCyclic handles the per-cycle work outside the transition branch:
// one-shot seek requests, IP announcement, mono switching, relative position
// tracking, the engine step and the not-running watchdog.
func (t *Task) serviceCyclic() {
	var (
		seek        SeekMode
		announceIP  bool
		newMono     bool
		currentMono bool
		mode        PlayMode
		paused      bool
		finished    bool
	)
	t.state.Read(func(s *State) {
		seek = s.SeekMode
		announceIP = s.AnnounceIP
		newMono = s.NewPlayMono
		currentMono = s.CurrentPlayMono
		mode = s.PlayMode
		paused = s.PausePlay
		finished = s.PlaylistFinished
	})

	if seek != SeekNormal {
		offset := t.cfg.SeekJumpSeconds
		if seek == SeekBackwards {
			offset = -offset
		}
		if err := t.engine.SetTimeOffset(offset); err != nil {
			t.indicator.Error()
		} else {
			log.Info().Int("seconds", offset).Msg("Seek applied")
		}
		t.state.Update(func(s *State) { s.SeekMode = SeekNormal })
	}

	if announceIP {
		t.state.Update(func(s *State) { s.AnnounceIP = false })
		ip := t.network.IPAddress()
		if ip == "" {
			t.indicator.Error()
		} else {
			text := strings.ReplaceAll(ip, ".", " point ")
			if err := t.engine.ConnectToSpeech(text, t.cfg.SpeechLanguage); err != nil {
				t.indicator.Error()
			}
		}
	}

	if newMono != currentMono {
		t.engine.SetMono(newMono)
		t.state.Update(func(s *State) { s.CurrentPlayMono = newMono })
		if newMono {
			log.Info().Msg("Switched to mono output")
		} else {
			log.Info().Msg("Switched to stereo output")
		}
	}

	// Webstreams have no file size; their relative position stays 0.
	if !finished && !paused && !t.isWebstream() {
		if size := t.engine.FileSize(); size > 0 {
			pos := t.engine.FilePos()
			buffered := t.engine.BufferFilled()
			if pos > buffered {
				rel := float64(pos-buffered) / float64(size) * 100
				t.state.Update(func(s *State) { s.CurrentRelPos = rel })
			}
		}
	}

	t.engine.Loop()

	active := mode != NoPlaylist && mode != Busy
	if active && !paused && !finished {
		t.system.UpdateActivityTimer()

		if t.engine.IsRunning() {
			t.notRunningCycles = 0
		} else {
			t.notRunningCycles++
			if t.notRunningCycles >= t.cfg.NotRunningDebounceCycles {
				// The engine died silently; force-finish so the loop moves on.
				log.Error().Msg("Engine not running, forcing track transition")
				t.indicator.Error()
				t.state.Update(func(s *State) { s.TrackFinished = true })
				t.notRunningCycles = 0
			}
		}
	} else {
		t.notRunningCycles = 0
	}
}

func (t *Task) isWebstream() bool {
	ws := false
	t.state.Read(func(s *State) { ws = s.IsWebstream })
	return ws
}

func (t *Task) resumeIfPausedLocked(s *State) {
	if s.PausePlay {
		t.engine.PauseResume()
		s.PausePlay = false
	}
}

func (t *Task) clearTrackRepeatLocked(s *State) {
	if s.RepeatCurrentTrack {
		s.RepeatCurrentTrack = false
	}
}

// saveResume persists the resume position, best effort. Persistence failures
// never interrupt playback.
func (t *Task) saveResume(s *State, track string, pos uint32, trackIndex int) {
	if t.saver == nil || s.PlayTag == "" {
		return
	}
	if s.PlayMode == NoPlaylist {
		return
	}
	if err := t.saver.SaveResume(s.PlayTag, track, pos, s.PlayMode, trackIndex, len(t.playlist)); err != nil {
		log.Error().Err(err).Str("tag", s.PlayTag).Msg("Failed to persist resume position")
	}
}
