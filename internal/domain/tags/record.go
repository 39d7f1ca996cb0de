// Package tags maps RFID tag identifiers to playback assignments.
package tags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fablebox/fablebox/internal/domain/playback"
)

var (
	// ErrMalformed is returned for tag records that do not match the
	// persisted wire format.
	ErrMalformed = errors.New("tags: malformed record")
	// ErrUnknownTag is returned when a tag has no stored assignment.
	ErrUnknownTag = errors.New("tags: unknown tag")
)

// Record is the persisted assignment of one RFID tag. Mode is either a play
// mode or, at or above playback.CommandThreshold, an admin command code; in
// the latter case the remaining fields are meaningless.
type Record struct {
	Target     string
	Position   uint32
	Mode       uint32
	TrackIndex int
}

// IsCommand reports whether the record encodes an admin command rather than
// a playback assignment.
func (r Record) IsCommand() bool {
	return r.Mode >= uint32(playback.CommandThreshold)
}

// PlayMode returns the record's play mode. Only meaningful when IsCommand
// is false.
func (r Record) PlayMode() playback.PlayMode {
	return playback.PlayMode(r.Mode)
}

// String renders the persisted wire format:
// #<target>#<position>#<mode>#<trackIndex>
func (r Record) String() string {
	return fmt.Sprintf("#%s#%d#%d#%d", r.Target, r.Position, r.Mode, r.TrackIndex)
}

// ParseRecord parses the persisted wire format. The record must start with
// '#' and carry exactly four '#'-separated fields.
func ParseRecord(s string) (Record, error) {
	if !strings.HasPrefix(s, "#") {
		return Record{}, ErrMalformed
	}
	fields := strings.Split(s[1:], "#")
	if len(fields) != 4 {
		return Record{}, ErrMalformed
	}

	pos, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("%w: position %q", ErrMalformed, fields[1])
	}
	mode, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("%w: mode %q", ErrMalformed, fields[2])
	}
	idx, err := strconv.Atoi(fields[3])
	if err != nil || idx < 0 {
		return Record{}, fmt.Errorf("%w: track index %q", ErrMalformed, fields[3])
	}

	return Record{
		Target:     fields[0],
		Position:   uint32(pos),
		Mode:       uint32(mode),
		TrackIndex: idx,
	}, nil
}
