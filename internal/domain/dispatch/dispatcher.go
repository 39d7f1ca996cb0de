// Package dispatch turns scanned RFID tags into running playlists: it
// resolves the tag's stored record, builds the track list for the record's
// play mode and hands the result to the playback task.
package dispatch

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fablebox/fablebox/internal/domain/playback"
	"github.com/fablebox/fablebox/internal/domain/playlist"
	"github.com/fablebox/fablebox/internal/domain/tags"
)

var (
	// ErrInvalidPlayMode is returned for records carrying a mode value that
	// is neither a play mode nor an admin command.
	ErrInvalidPlayMode = errors.New("dispatch: invalid play mode")
	// ErrOffline is returned when a webstream is requested without network
	// connectivity.
	ErrOffline = errors.New("dispatch: no network connectivity")
)

// CommandRunner executes admin command codes found in tag records.
type CommandRunner interface {
	ExecuteCode(code uint32) error
}

// Dispatcher is the bridge between tag scans and the playback task.
type Dispatcher struct {
	state     *playback.State
	registry  *tags.Registry
	playlistQ *playback.Mailbox[[]string]
	commands  CommandRunner
	network   playback.Network
	indicator playback.Indicator
	notifier  playback.Notifier

	// musicRoot resolves relative record targets. Absolute targets and URLs
	// are used as-is.
	musicRoot string
}

// NewDispatcher wires the dispatcher. notifier may be nil.
func NewDispatcher(state *playback.State, registry *tags.Registry,
	playlistQ *playback.Mailbox[[]string], commands CommandRunner,
	network playback.Network, indicator playback.Indicator,
	notifier playback.Notifier, musicRoot string) *Dispatcher {

	if notifier == nil {
		notifier = playback.NopNotifier{}
	}
	return &Dispatcher{
		state:     state,
		registry:  registry,
		playlistQ: playlistQ,
		commands:  commands,
		network:   network,
		indicator: indicator,
		notifier:  notifier,
		musicRoot: musicRoot,
	}
}

// HandleTag processes one tag scan end to end: lookup, command execution or
// playlist dispatch.
func (d *Dispatcher) HandleTag(tagID string) error {
	rec, err := d.registry.Lookup(tagID)
	if err != nil {
		if errors.Is(err, tags.ErrUnknownTag) {
			log.Warn().Str("tag", tagID).Msg("Tag has no assignment")
		} else {
			log.Error().Err(err).Str("tag", tagID).Msg("Failed to resolve tag")
		}
		d.indicator.Error()
		return err
	}

	if rec.IsCommand() {
		log.Info().Str("tag", tagID).Uint32("code", rec.Mode).Msg("Tag carries admin command")
		return d.commands.ExecuteCode(rec.Mode)
	}

	return d.Dispatch(tagID, rec)
}

// Dispatch builds and activates the playlist described by rec. The state is
// parked in the Busy mode while the playlist is under construction so that
// concurrent track commands are rejected.
func (d *Dispatcher) Dispatch(tagID string, rec tags.Record) error {
	mode := rec.PlayMode()
	if !mode.Valid() {
		log.Error().Str("tag", tagID).Uint32("mode", rec.Mode).Msg("Record carries invalid play mode")
		d.indicator.Error()
		return ErrInvalidPlayMode
	}

	d.saveDepartingResume(tagID)

	target := d.resolveTarget(rec.Target)
	log.Info().
		Str("tag", tagID).
		Str("mode", mode.String()).
		Str("target", target).
		Msg("Dispatching tag")

	d.state.Update(func(s *playback.State) {
		s.PlayMode = playback.Busy
		s.PlaylistFinished = false
	})

	if mode == playback.Webstream && !d.network.IsConnected() {
		log.Error().Msg("Webstream requested without network connectivity")
		d.indicator.Error()
		d.resetToIdle()
		return ErrOffline
	}

	if mode == playback.RandomSubdirOfDir || mode == playback.RandomSubdirOfDirRandom {
		sub, err := playlist.PickRandomSubdirectory(target)
		if err != nil {
			log.Error().Err(err).Str("dir", target).Msg("No subdirectory to pick from")
			d.indicator.Error()
			d.resetToIdle()
			return err
		}
		log.Info().Str("dir", sub).Msg("Picked random subdirectory")
		target = sub
		if mode == playback.RandomSubdirOfDir {
			mode = playback.AllTracksOfDirSorted
		} else {
			mode = playback.AllTracksOfDirRandom
		}
	}

	list, err := playlist.Build(target, mode)
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to build playlist")
		d.indicator.Error()
		d.resetToIdle()
		return err
	}

	if mode == playback.SingleTrackOfDirRandom {
		list = list[:1]
	}

	trackIndex := 0
	startPos := uint32(0)
	if mode == playback.Audiobook || mode == playback.AudiobookLoop {
		if rec.TrackIndex < len(list) {
			trackIndex = rec.TrackIndex
			startPos = rec.Position
		} else {
			log.Warn().Int("index", rec.TrackIndex).Int("tracks", len(list)).Msg("Saved track index out of range, starting over")
		}
	}

	d.state.Update(func(s *playback.State) {
		s.PlayTag = tagID
		s.PlayMode = mode
		s.CurrentTrackNumber = trackIndex
		s.StartAtFilePos = startPos
		s.NumberOfTracks = len(list)
		s.PlaylistFinished = false
		s.TrackFinished = false
		s.PausePlay = false
		s.IsWebstream = mode == playback.Webstream
		s.PlayUntilTrackNumber = 0
		s.SleepAfterPlaylist = false
		s.SleepAfterFiveTracks = false

		s.RepeatCurrentTrack = mode == playback.SingleTrackLoop
		s.RepeatPlaylist = mode == playback.SingleTrackLoop ||
			mode == playback.AudiobookLoop ||
			mode == playback.AllTracksOfDirSortedLoop ||
			mode == playback.AllTracksOfDirRandomLoop
		s.SleepAfterCurrentTrack = mode == playback.SingleTrackOfDirRandom
		s.SaveLastPlayPosition = mode == playback.Audiobook || mode == playback.AudiobookLoop
	})

	d.playlistQ.Put(list)
	d.notifier.StateChanged()
	return nil
}

// SaveResume persists the resume position for a tag. Multi-track playlists
// store the containing directory so the playlist can be rebuilt; single
// tracks store the file itself.
func (d *Dispatcher) SaveResume(tagID, track string, playPos uint32, mode playback.PlayMode, trackIndex, numberOfTracks int) error {
	target := track
	if numberOfTracks > 1 {
		target = filepath.Dir(track)
	}
	return d.registry.Assign(tagID, tags.Record{
		Target:     target,
		Position:   playPos,
		Mode:       uint32(mode),
		TrackIndex: trackIndex,
	})
}

// saveDepartingResume bumps the departing tag's saved track index when a
// resume-saving playlist is interrupted by a different tag, so swapping tags
// mid-audiobook does not lose the listening position at track granularity.
func (d *Dispatcher) saveDepartingResume(newTag string) {
	var (
		oldTag   string
		save     bool
		finished bool
		track    int
	)
	d.state.Read(func(s *playback.State) {
		oldTag = s.PlayTag
		save = s.SaveLastPlayPosition
		finished = s.PlaylistFinished
		track = s.CurrentTrackNumber
	})
	if oldTag == "" || oldTag == newTag || !save || finished {
		return
	}

	rec, err := d.registry.Lookup(oldTag)
	if err != nil || rec.IsCommand() {
		return
	}
	rec.Position = 0
	rec.TrackIndex = track
	if err := d.registry.Assign(oldTag, rec); err != nil {
		log.Error().Err(err).Str("tag", oldTag).Msg("Failed to save resume for departing tag")
	}
}

func (d *Dispatcher) resolveTarget(target string) string {
	if strings.HasPrefix(target, "http") || filepath.IsAbs(target) || d.musicRoot == "" {
		return target
	}
	return filepath.Join(d.musicRoot, target)
}

func (d *Dispatcher) resetToIdle() {
	d.state.Update(func(s *playback.State) {
		s.PlayMode = playback.NoPlaylist
		s.PlaylistFinished = true
	})
	d.notifier.StateChanged()
}
