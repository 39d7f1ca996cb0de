// Package playback provides the core playback domain: play modes, the shared
// playback state, the single-slot mailboxes and the long-running playback task.
package playback

// PlayMode selects which items are played, in what order and whether playback
// loops. The numeric values are part of the persisted tag record format and
// must stay stable.
type PlayMode uint8

const (
	NoPlaylist               PlayMode = 0  // idle, no playlist active
	SingleTrack              PlayMode = 1  // play a single track
	SingleTrackLoop          PlayMode = 2  // play a single track in an endless loop
	Audiobook                PlayMode = 3  // sorted directory, resume position is saved
	AudiobookLoop            PlayMode = 4  // like Audiobook but loops the playlist
	AllTracksOfDirSorted     PlayMode = 5  // all tracks of a directory, alphabetic
	AllTracksOfDirRandom     PlayMode = 6  // all tracks of a directory, shuffled
	AllTracksOfDirSortedLoop PlayMode = 7  // alphabetic, endless loop
	Webstream                PlayMode = 8  // single webradio stream
	AllTracksOfDirRandomLoop PlayMode = 9  // shuffled, endless loop
	Busy                     PlayMode = 10 // transitional: playlist under construction
	LocalM3U                 PlayMode = 11 // entries read from a local m3u file
	SingleTrackOfDirRandom   PlayMode = 12 // one random track of a directory, then sleep
	RandomSubdirOfDir        PlayMode = 13 // random subdirectory, played sorted
	RandomSubdirOfDirRandom  PlayMode = 14 // random subdirectory, played shuffled
)

// CommandThreshold marks the lowest numeric value that encodes an admin
// command instead of a play mode in a persisted tag record.
const CommandThreshold = 100

func (m PlayMode) String() string {
	switch m {
	case NoPlaylist:
		return "NO_PLAYLIST"
	case SingleTrack:
		return "SINGLE_TRACK"
	case SingleTrackLoop:
		return "SINGLE_TRACK_LOOP"
	case Audiobook:
		return "AUDIOBOOK"
	case AudiobookLoop:
		return "AUDIOBOOK_LOOP"
	case AllTracksOfDirSorted:
		return "ALL_TRACKS_OF_DIR_SORTED"
	case AllTracksOfDirRandom:
		return "ALL_TRACKS_OF_DIR_RANDOM"
	case AllTracksOfDirSortedLoop:
		return "ALL_TRACKS_OF_DIR_SORTED_LOOP"
	case Webstream:
		return "WEBSTREAM"
	case AllTracksOfDirRandomLoop:
		return "ALL_TRACKS_OF_DIR_RANDOM_LOOP"
	case Busy:
		return "BUSY"
	case LocalM3U:
		return "LOCAL_M3U"
	case SingleTrackOfDirRandom:
		return "SINGLE_TRACK_OF_DIR_RANDOM"
	case RandomSubdirOfDir:
		return "RANDOM_SUBDIRECTORY_OF_DIRECTORY"
	case RandomSubdirOfDirRandom:
		return "RANDOM_SUBDIRECTORY_OF_DIRECTORY_ALL_TRACKS_OF_DIR_RANDOM"
	}
	return "UNKNOWN"
}

// Valid reports whether m is a dispatchable play mode.
func (m PlayMode) Valid() bool {
	return m >= SingleTrack && m <= RandomSubdirOfDirRandom && m != Busy
}

// Sorted reports whether playlists built for m are sorted alphabetically.
func (m PlayMode) Sorted() bool {
	switch m {
	case Audiobook, AudiobookLoop, AllTracksOfDirSorted, AllTracksOfDirSortedLoop, RandomSubdirOfDir:
		return true
	}
	return false
}

// Randomized reports whether playlists built for m are shuffled.
func (m PlayMode) Randomized() bool {
	switch m {
	case AllTracksOfDirRandom, AllTracksOfDirRandomLoop, SingleTrackOfDirRandom, RandomSubdirOfDirRandom:
		return true
	}
	return false
}

// CacheEligible reports whether a directory listing built for m may be served
// from (and written to) the playlist cache. Caching preserves build order, so
// it is only valid for order-preserving multi-track file modes.
func (m PlayMode) CacheEligible() bool {
	switch m {
	case Audiobook, AudiobookLoop, AllTracksOfDirSorted, AllTracksOfDirSortedLoop:
		return true
	}
	return false
}
