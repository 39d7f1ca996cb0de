package control

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fablebox/fablebox/internal/domain/playback"
)

// ErrInvalidCommand is returned for codes outside the known command set.
var ErrInvalidCommand = errors.New("control: invalid command")

// Controller is the supervisory surface the executor drives: sleep timers,
// control locking and the radio/service toggles.
type Controller interface {
	RequestSleep()
	SetSleepTimer(d time.Duration)
	ToggleControlsLock() bool
	ToggleNightmode() bool
	ToggleWifi() bool
	ToggleBluetooth() bool
	EnableFTP()
}

// VolumeRange holds the producer-side volume clamping bounds.
type VolumeRange struct {
	Min     int
	Max     int
	Initial int
}

func (r *VolumeRange) withDefaults() {
	if r.Max <= 0 {
		r.Max = 21
	}
	if r.Initial <= 0 {
		r.Initial = 3
	}
}

// Executor translates admin command codes into state flips, mailbox sends
// and controller calls. It is safe for concurrent use by multiple frontends.
type Executor struct {
	state      *playback.State
	volumeQ    *playback.Mailbox[int]
	controlQ   *playback.Mailbox[playback.TrackCommand]
	controller Controller
	indicator  playback.Indicator
	notifier   playback.Notifier
	volume     VolumeRange
}

// NewExecutor wires the executor. notifier may be nil.
func NewExecutor(state *playback.State, volumeQ *playback.Mailbox[int],
	controlQ *playback.Mailbox[playback.TrackCommand], controller Controller,
	indicator playback.Indicator, notifier playback.Notifier, volume VolumeRange) *Executor {

	volume.withDefaults()
	if notifier == nil {
		notifier = playback.NopNotifier{}
	}
	return &Executor{
		state:      state,
		volumeQ:    volumeQ,
		controlQ:   controlQ,
		controller: controller,
		indicator:  indicator,
		notifier:   notifier,
		volume:     volume,
	}
}

// Execute runs one admin command. Unknown codes return ErrInvalidCommand
// after signalling an error indication.
func (e *Executor) Execute(cmd Command) error {
	log.Info().Str("command", cmd.String()).Msg("Executing admin command")

	switch cmd {
	case CmdLockButtons:
		locked := e.controller.ToggleControlsLock()
		log.Info().Bool("locked", locked).Msg("Controls lock toggled")
		e.indicator.OK()

	case CmdSleepTimer15:
		e.controller.SetSleepTimer(15 * time.Minute)
		e.indicator.OK()
	case CmdSleepTimer30:
		e.controller.SetSleepTimer(30 * time.Minute)
		e.indicator.OK()
	case CmdSleepTimer60:
		e.controller.SetSleepTimer(60 * time.Minute)
		e.indicator.OK()
	case CmdSleepTimer120:
		e.controller.SetSleepTimer(120 * time.Minute)
		e.indicator.OK()

	case CmdSleepAfterEndOfTrack:
		e.state.Update(func(s *playback.State) {
			s.SleepAfterCurrentTrack = !s.SleepAfterCurrentTrack
			s.SleepAfterPlaylist = false
			s.SleepAfterFiveTracks = false
			s.PlayUntilTrackNumber = 0
		})
		e.indicator.OK()
		e.notifier.StateChanged()

	case CmdSleepAfterEndOfPlaylist:
		e.state.Update(func(s *playback.State) {
			s.SleepAfterPlaylist = !s.SleepAfterPlaylist
			s.SleepAfterCurrentTrack = false
			s.SleepAfterFiveTracks = false
			s.PlayUntilTrackNumber = 0
		})
		e.indicator.OK()
		e.notifier.StateChanged()

	case CmdSleepAfterFiveTracks:
		e.state.Update(func(s *playback.State) {
			s.SleepAfterFiveTracks = !s.SleepAfterFiveTracks
			s.SleepAfterCurrentTrack = false
			s.SleepAfterPlaylist = false
			if !s.SleepAfterFiveTracks {
				s.PlayUntilTrackNumber = 0
				return
			}
			if s.CurrentTrackNumber+5 >= s.NumberOfTracks {
				// Fewer than five tracks left, sleep at the end instead.
				s.SleepAfterPlaylist = true
				s.SleepAfterFiveTracks = false
			} else {
				s.PlayUntilTrackNumber = s.CurrentTrackNumber + 5
			}
		})
		e.indicator.OK()
		e.notifier.StateChanged()

	case CmdToggleRepeatPlaylist:
		e.state.Update(func(s *playback.State) { s.RepeatPlaylist = !s.RepeatPlaylist })
		e.indicator.OK()
		e.notifier.StateChanged()

	case CmdToggleRepeatTrack:
		e.state.Update(func(s *playback.State) { s.RepeatCurrentTrack = !s.RepeatCurrentTrack })
		e.indicator.OK()
		e.notifier.StateChanged()

	case CmdDimLEDsNightmode:
		on := e.controller.ToggleNightmode()
		log.Info().Bool("nightmode", on).Msg("LED nightmode toggled")
		e.indicator.OK()

	case CmdToggleWifi:
		on := e.controller.ToggleWifi()
		log.Info().Bool("enabled", on).Msg("WiFi toggled")

	case CmdToggleBluetooth:
		on := e.controller.ToggleBluetooth()
		log.Info().Bool("enabled", on).Msg("Bluetooth mode toggled")
		e.indicator.OK()

	case CmdEnableFTP:
		e.controller.EnableFTP()
		e.indicator.OK()

	case CmdTellIPAddress:
		e.state.Update(func(s *playback.State) { s.AnnounceIP = true })

	case CmdPlayPause:
		e.controlQ.Put(playback.PausePlay)
	case CmdPrevTrack:
		e.controlQ.Put(playback.PreviousTrack)
	case CmdNextTrack:
		e.controlQ.Put(playback.NextTrack)
	case CmdFirstTrack:
		e.controlQ.Put(playback.FirstTrack)
	case CmdLastTrack:
		e.controlQ.Put(playback.LastTrack)
	case CmdStop:
		e.controlQ.Put(playback.Stop)

	case CmdVolumeInit:
		e.volumeQ.Put(e.volume.Initial)

	case CmdVolumeUp:
		e.bumpVolume(1)
	case CmdVolumeDown:
		e.bumpVolume(-1)

	case CmdMeasureBattery:
		log.Info().Msg("Battery measurement not available on this device")

	case CmdSleepNow:
		e.controller.RequestSleep()

	case CmdSeekForwards:
		e.state.Update(func(s *playback.State) { s.SeekMode = playback.SeekForwards })
	case CmdSeekBackwards:
		e.state.Update(func(s *playback.State) { s.SeekMode = playback.SeekBackwards })

	default:
		log.Warn().Uint32("code", uint32(cmd)).Msg("Unknown admin command")
		e.indicator.Error()
		return ErrInvalidCommand
	}
	return nil
}

// Track forwards a direct track command to the playback task.
func (e *Executor) Track(cmd playback.TrackCommand) {
	e.controlQ.Put(cmd)
}

// ExecuteCode runs a raw numeric command code as found in tag records.
func (e *Executor) ExecuteCode(code uint32) error {
	return e.Execute(Command(code))
}

// SetVolume clamps v to the configured range and hands it to the playback
// task. Frontends call this directly for absolute volume changes.
func (e *Executor) SetVolume(v int) {
	if v < e.volume.Min {
		v = e.volume.Min
	}
	if v > e.volume.Max {
		v = e.volume.Max
	}
	e.volumeQ.Put(v)
}

// bumpVolume applies a relative step with producer-side clamping. A step
// past the bound signals an error indication and sends nothing.
func (e *Executor) bumpVolume(step int) {
	cur := 0
	e.state.Read(func(s *playback.State) { cur = s.Volume })

	next := cur + step
	if next < e.volume.Min || next > e.volume.Max {
		log.Info().Int("volume", cur).Msg("Volume already at bound")
		e.indicator.Error()
		return
	}
	e.volumeQ.Put(next)
}
