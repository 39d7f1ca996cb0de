package playback

// TrackCommand is a track-control request consumed by the playback task.
type TrackCommand uint8

const (
	NoAction      TrackCommand = 0
	Stop          TrackCommand = 1
	Play          TrackCommand = 2
	PausePlay     TrackCommand = 3
	NextTrack     TrackCommand = 4
	PreviousTrack TrackCommand = 5
	FirstTrack    TrackCommand = 6
	LastTrack     TrackCommand = 7
)

func (c TrackCommand) String() string {
	switch c {
	case NoAction:
		return "NO_ACTION"
	case Stop:
		return "STOP"
	case Play:
		return "PLAY"
	case PausePlay:
		return "PAUSEPLAY"
	case NextTrack:
		return "NEXTTRACK"
	case PreviousTrack:
		return "PREVIOUSTRACK"
	case FirstTrack:
		return "FIRSTTRACK"
	case LastTrack:
		return "LASTTRACK"
	}
	return "UNKNOWN"
}
