package playback

import "sync"

// SeekMode is a one-shot seek request serviced by the playback task.
type SeekMode uint8

const (
	SeekNormal    SeekMode = 0
	SeekForwards  SeekMode = 1
	SeekBackwards SeekMode = 2
)

// State is the authoritative description of what is currently playing.
// It is the only cross-task shared mutable structure besides the mailboxes.
// The playback task and the dispatcher write it; observers (web transport,
// indication) read copy-out snapshots only.
type State struct {
	mu sync.RWMutex

	PlayMode           PlayMode
	CurrentTrackNumber int
	NumberOfTracks     int
	Title              string
	CoverURL           string
	StartAtFilePos     uint32
	CurrentRelPos      float64 // relative position in the current file, percent
	Volume             int
	PlayTag            string // RFID tag that started the current playlist

	PausePlay              bool
	TrackFinished          bool
	PlaylistFinished       bool
	RepeatCurrentTrack     bool
	RepeatPlaylist         bool
	SleepAfterCurrentTrack bool
	SleepAfterPlaylist     bool
	SleepAfterFiveTracks   bool
	SaveLastPlayPosition   bool
	IsWebstream            bool
	PlayUntilTrackNumber   int

	SeekMode        SeekMode
	AnnounceIP      bool
	NewPlayMono     bool
	CurrentPlayMono bool
}

// Snapshot is an immutable copy of State handed out to observers.
type Snapshot struct {
	PlayMode           PlayMode `json:"playMode"`
	PlayModeName       string   `json:"playModeName"`
	CurrentTrackNumber int      `json:"currentTrackNumber"`
	NumberOfTracks     int      `json:"numberOfTracks"`
	Title              string   `json:"title"`
	CoverURL           string   `json:"coverUrl"`
	CurrentRelPos      float64  `json:"currentRelPos"`
	Volume             int      `json:"volume"`
	PausePlay          bool     `json:"pausePlay"`
	PlaylistFinished   bool     `json:"playlistFinished"`
	RepeatCurrentTrack bool     `json:"repeatCurrentTrack"`
	RepeatPlaylist     bool     `json:"repeatPlaylist"`
	IsWebstream        bool     `json:"isWebstream"`
}

// NewState creates the process-wide playback state in its idle form.
func NewState() *State {
	return &State{
		PlayMode:         NoPlaylist,
		PlaylistFinished: true,
	}
}

// Update runs fn under the state lock. All mutations go through here so the
// lock never leaks to callers.
func (s *State) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Read runs fn under the read lock.
func (s *State) Read(fn func(*State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s)
}

// Mode returns the current play mode.
func (s *State) Mode() PlayMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PlayMode
}

// Paused reports whether playback is currently paused.
func (s *State) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PausePlay
}

// RepeatMode describes the combined repeat flags (track and/or playlist).
type RepeatMode uint8

const (
	RepeatOff           RepeatMode = 0
	RepeatTrack         RepeatMode = 1
	RepeatPlaylistMode  RepeatMode = 2
	RepeatTrackPlaylist RepeatMode = 3
)

// Repeat returns the combined repeat mode.
func (s *State) Repeat() RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.RepeatCurrentTrack && s.RepeatPlaylist:
		return RepeatTrackPlaylist
	case s.RepeatCurrentTrack:
		return RepeatTrack
	case s.RepeatPlaylist:
		return RepeatPlaylistMode
	}
	return RepeatOff
}

// Snapshot returns a copy of the observable fields.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		PlayMode:           s.PlayMode,
		PlayModeName:       s.PlayMode.String(),
		CurrentTrackNumber: s.CurrentTrackNumber,
		NumberOfTracks:     s.NumberOfTracks,
		Title:              s.Title,
		CoverURL:           s.CoverURL,
		CurrentRelPos:      s.CurrentRelPos,
		Volume:             s.Volume,
		PausePlay:          s.PausePlay,
		PlaylistFinished:   s.PlaylistFinished,
		RepeatCurrentTrack: s.RepeatCurrentTrack,
		RepeatPlaylist:     s.RepeatPlaylist,
		IsWebstream:        s.IsWebstream,
	}
}
