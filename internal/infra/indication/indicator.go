// Package indication carries user feedback pulses to whatever signalling
// hardware is attached. The default implementation logs; LED strips or
// buzzers plug in behind the same interface.
package indication

import "github.com/rs/zerolog/log"

// Log is the logging indicator used when no signalling hardware is wired.
type Log struct{}

func (Log) Error() {
	log.Warn().Str("indication", "error").Msg("Indication pulse")
}

func (Log) OK() {
	log.Info().Str("indication", "ok").Msg("Indication pulse")
}

func (Log) Rewind() {
	log.Info().Str("indication", "rewind").Msg("Indication pulse")
}

func (Log) PlaylistProgress() {
	log.Debug().Str("indication", "playlistProgress").Msg("Indication pulse")
}

func (Log) VolumeChange() {
	log.Debug().Str("indication", "volumeChange").Msg("Indication pulse")
}
