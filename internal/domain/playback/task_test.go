package playback_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fablebox/fablebox/internal/domain/playback"
)

type fakeEngine struct {
	connectedFiles []string
	connectedHosts []string
	stops          int
	pauseToggles   int
	volume         int
	mono           bool

	filePos  uint32
	fileSize uint32
	buffered uint32
	curTime  uint32
	running  bool
	finished bool

	failConnect bool
	seekOffsets []int
	seekBytes   []uint32
}

func (e *fakeEngine) ConnectToFile(path string) error {
	if e.failConnect {
		return errors.New("decoder refused")
	}
	e.connectedFiles = append(e.connectedFiles, path)
	e.running = true
	return nil
}

func (e *fakeEngine) ConnectToHost(url string) error {
	if e.failConnect {
		return errors.New("stream refused")
	}
	e.connectedHosts = append(e.connectedHosts, url)
	e.running = true
	return nil
}

func (e *fakeEngine) ConnectToSpeech(text, lang string) error { return nil }

func (e *fakeEngine) Stop() {
	e.stops++
	e.running = false
}

func (e *fakeEngine) PauseResume()     { e.pauseToggles++ }
func (e *fakeEngine) SetVolume(v int)  { e.volume = v }
func (e *fakeEngine) SetMono(on bool)  { e.mono = on }
func (e *fakeEngine) SetFilePos(pos uint32) error {
	e.seekBytes = append(e.seekBytes, pos)
	return nil
}
func (e *fakeEngine) SetTimeOffset(seconds int) error {
	e.seekOffsets = append(e.seekOffsets, seconds)
	return nil
}
func (e *fakeEngine) FilePos() uint32      { return e.filePos }
func (e *fakeEngine) FileSize() uint32     { return e.fileSize }
func (e *fakeEngine) BufferFilled() uint32 { return e.buffered }
func (e *fakeEngine) CurrentTime() uint32  { return e.curTime }
func (e *fakeEngine) IsRunning() bool      { return e.running }
func (e *fakeEngine) TrackFinished() bool {
	f := e.finished
	e.finished = false
	return f
}
func (e *fakeEngine) Loop() {}

type resumeCall struct {
	tagID      string
	track      string
	playPos    uint32
	mode       playback.PlayMode
	trackIndex int
	tracks     int
}

type fakeSaver struct {
	calls []resumeCall
}

func (s *fakeSaver) SaveResume(tagID, track string, playPos uint32, mode playback.PlayMode, trackIndex, numberOfTracks int) error {
	s.calls = append(s.calls, resumeCall{tagID, track, playPos, mode, trackIndex, numberOfTracks})
	return nil
}

type fakeIndicator struct {
	errors, oks, rewinds, progress, volumes int
}

func (i *fakeIndicator) Error()            { i.errors++ }
func (i *fakeIndicator) OK()               { i.oks++ }
func (i *fakeIndicator) Rewind()           { i.rewinds++ }
func (i *fakeIndicator) PlaylistProgress() { i.progress++ }
func (i *fakeIndicator) VolumeChange()     { i.volumes++ }

type fakeSystem struct {
	sleepRequests int
	activityKicks int
}

func (s *fakeSystem) RequestSleep()        { s.sleepRequests++ }
func (s *fakeSystem) UpdateActivityTimer() { s.activityKicks++ }

type fakeNetwork struct {
	connected bool
	ip        string
}

func (n *fakeNetwork) IsConnected() bool { return n.connected }
func (n *fakeNetwork) IPAddress() string { return n.ip }

type taskFixture struct {
	task      *playback.Task
	state     *playback.State
	engine    *fakeEngine
	saver     *fakeSaver
	indicator *fakeIndicator
	system    *fakeSystem
	volumeQ   *playback.Mailbox[int]
	controlQ  *playback.Mailbox[playback.TrackCommand]
	playlistQ *playback.Mailbox[[]string]
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	f := &taskFixture{
		state:     playback.NewState(),
		engine:    &fakeEngine{},
		saver:     &fakeSaver{},
		indicator: &fakeIndicator{},
		system:    &fakeSystem{},
		volumeQ:   playback.NewMailbox[int](),
		controlQ:  playback.NewMailbox[playback.TrackCommand](),
		playlistQ: playback.NewMailbox[[]string](),
	}
	f.task = playback.NewTask(f.state, f.engine, f.volumeQ, f.controlQ, f.playlistQ,
		f.saver, f.indicator, f.system, &fakeNetwork{connected: true, ip: "192.168.1.20"},
		nil, playback.Config{})
	return f
}

// writeTracks creates n empty track files and returns their paths in sorted
// order.
func writeTracks(t *testing.T, names ...string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

// startPlaylist puts a playlist in the given mode and runs one cycle so the
// first track starts.
func (f *taskFixture) startPlaylist(t *testing.T, mode playback.PlayMode, tag string, tracks []string) {
	t.Helper()

	f.state.Update(func(s *playback.State) {
		s.PlayMode = mode
		s.PlayTag = tag
		s.PlaylistFinished = false
		s.SaveLastPlayPosition = mode == playback.Audiobook || mode == playback.AudiobookLoop
		s.RepeatPlaylist = mode == playback.AudiobookLoop ||
			mode == playback.AllTracksOfDirSortedLoop ||
			mode == playback.AllTracksOfDirRandomLoop
	})
	f.playlistQ.Put(tracks)

	if !f.task.Cycle() {
		t.Fatal("task stopped during playlist start")
	}
}

func TestNewPlaylistStartsFirstTrack(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")

	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	if len(f.engine.connectedFiles) != 1 || f.engine.connectedFiles[0] != tracks[0] {
		t.Fatalf("expected first track to start, got %v", f.engine.connectedFiles)
	}

	snap := f.state.Snapshot()
	if snap.Title != "(1/2): 01.mp3" {
		t.Errorf("unexpected title %q", snap.Title)
	}
	if snap.PlaylistFinished {
		t.Error("expected playlist not to be finished")
	}
}

func TestTrackFinishedAdvancesToNext(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.engine.finished = true
	f.task.Cycle()

	if len(f.engine.connectedFiles) != 2 || f.engine.connectedFiles[1] != tracks[1] {
		t.Fatalf("expected second track to start, got %v", f.engine.connectedFiles)
	}
	if got := f.state.Snapshot().Title; got != "(2/2): 02.mp3" {
		t.Errorf("unexpected title %q", got)
	}
}

func TestPlaylistExhaustionWithoutRepeat(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "only.mp3")
	f.startPlaylist(t, playback.SingleTrack, "tag1", tracks)

	f.engine.finished = true
	if !f.task.Cycle() {
		t.Fatal("task must keep running after a playlist ends")
	}

	snap := f.state.Snapshot()
	if !snap.PlaylistFinished {
		t.Error("expected playlist to be finished")
	}
	if snap.PlayMode != playback.NoPlaylist {
		t.Errorf("expected NO_PLAYLIST, got %q", snap.PlayMode)
	}
	if snap.Title != "" {
		t.Errorf("expected title to be cleared, got %q", snap.Title)
	}
}

func TestRepeatPlaylistWrapsToFirstTrack(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSortedLoop, "tag1", tracks)

	f.engine.finished = true
	f.task.Cycle() // advances to 02
	f.engine.finished = true
	f.task.Cycle() // wraps to 01

	files := f.engine.connectedFiles
	if len(files) != 3 || files[2] != tracks[0] {
		t.Fatalf("expected wrap to first track, got %v", files)
	}
}

func TestRepeatTrackStaysOnTrack(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.state.Update(func(s *playback.State) { s.RepeatCurrentTrack = true })
	f.engine.finished = true
	f.task.Cycle()

	files := f.engine.connectedFiles
	if len(files) != 2 || files[1] != tracks[0] {
		t.Fatalf("expected first track to restart, got %v", files)
	}
	if f.indicator.rewinds != 1 {
		t.Errorf("expected 1 rewind indication, got %d", f.indicator.rewinds)
	}
}

func TestStopCommandClearsPlayback(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.controlQ.Put(playback.Stop)
	f.task.Cycle()

	snap := f.state.Snapshot()
	if snap.PlayMode != playback.NoPlaylist || !snap.PlaylistFinished {
		t.Errorf("expected idle state after stop, got mode %q finished %v", snap.PlayMode, snap.PlaylistFinished)
	}
	if snap.Title != "" {
		t.Errorf("expected cleared title, got %q", snap.Title)
	}
	if f.engine.stops == 0 {
		t.Error("expected the engine to be stopped")
	}
}

func TestIdleStateReportsZeroTracks(t *testing.T) {
	t.Run("after stop", func(t *testing.T) {
		f := newTaskFixture(t)
		tracks := writeTracks(t, "01.mp3", "02.mp3")
		f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

		f.controlQ.Put(playback.Stop)
		f.task.Cycle()

		snap := f.state.Snapshot()
		if snap.PlayMode != playback.NoPlaylist {
			t.Fatalf("expected NO_PLAYLIST, got %q", snap.PlayMode)
		}
		if snap.NumberOfTracks != 0 {
			t.Errorf("expected 0 tracks while idle, got %d", snap.NumberOfTracks)
		}
	})

	t.Run("after exhaustion", func(t *testing.T) {
		f := newTaskFixture(t)
		tracks := writeTracks(t, "01.mp3", "02.mp3")
		f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

		f.engine.finished = true
		f.task.Cycle() // advances to 02
		f.engine.finished = true
		f.task.Cycle() // playlist ends

		snap := f.state.Snapshot()
		if snap.PlayMode != playback.NoPlaylist {
			t.Fatalf("expected NO_PLAYLIST, got %q", snap.PlayMode)
		}
		if snap.NumberOfTracks != 0 {
			t.Errorf("expected 0 tracks while idle, got %d", snap.NumberOfTracks)
		}
	})
}

func TestPausePersistsResumePosition(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "ch01.mp3", "ch02.mp3")
	f.startPlaylist(t, playback.Audiobook, "book1", tracks)

	f.engine.filePos = 5000
	f.engine.buffered = 1000
	f.controlQ.Put(playback.PausePlay)
	f.task.Cycle()

	if !f.state.Paused() {
		t.Error("expected paused state")
	}
	if len(f.saver.calls) != 1 {
		t.Fatalf("expected 1 resume save, got %d", len(f.saver.calls))
	}
	call := f.saver.calls[0]
	if call.tagID != "book1" || call.playPos != 4000 || call.trackIndex != 0 {
		t.Errorf("unexpected resume save %+v", call)
	}
}

func TestNextOnLastTrackSignalsError(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.controlQ.Put(playback.NextTrack)
	f.task.Cycle()

	if f.indicator.errors != 1 {
		t.Errorf("expected 1 error indication, got %d", f.indicator.errors)
	}
	if len(f.engine.connectedFiles) != 1 {
		t.Errorf("expected no track change, got %v", f.engine.connectedFiles)
	}
}

func TestPreviousRestartsCurrentTrackPastThreshold(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.engine.finished = true
	f.task.Cycle() // on track 02

	f.engine.curTime = 42 // well past the restart threshold
	f.controlQ.Put(playback.PreviousTrack)
	f.task.Cycle()

	files := f.engine.connectedFiles
	if files[len(files)-1] != tracks[1] {
		t.Errorf("expected current track to restart, got %v", files)
	}
}

func TestPreviousMovesBackEarlyInTrack(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.engine.finished = true
	f.task.Cycle() // on track 02

	f.engine.curTime = 2 // below the restart threshold
	f.controlQ.Put(playback.PreviousTrack)
	f.task.Cycle()

	files := f.engine.connectedFiles
	if files[len(files)-1] != tracks[0] {
		t.Errorf("expected move to previous track, got %v", files)
	}
}

func TestSleepAfterCurrentTrackStopsTask(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.state.Update(func(s *playback.State) { s.SleepAfterCurrentTrack = true })
	f.engine.finished = true

	if f.task.Cycle() {
		t.Error("expected the task to stop for sleep")
	}
	if f.system.sleepRequests != 1 {
		t.Errorf("expected 1 sleep request, got %d", f.system.sleepRequests)
	}
}

func TestPlayUntilTrackCeilingSleeps(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3", "03.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.state.Update(func(s *playback.State) { s.PlayUntilTrackNumber = 1 })
	f.engine.finished = true

	if f.task.Cycle() {
		t.Error("expected the task to stop at the track ceiling")
	}
	if f.system.sleepRequests != 1 {
		t.Errorf("expected 1 sleep request, got %d", f.system.sleepRequests)
	}
}

func TestCommandWhileIdleIsIgnored(t *testing.T) {
	f := newTaskFixture(t)

	f.controlQ.Put(playback.NextTrack)
	f.task.Cycle()

	if f.indicator.errors != 1 {
		t.Errorf("expected 1 error indication, got %d", f.indicator.errors)
	}
	if len(f.engine.connectedFiles) != 0 {
		t.Errorf("expected no playback, got %v", f.engine.connectedFiles)
	}
}

func TestOpenFailureAdvancesToNextTrack(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")

	f.engine.failConnect = true
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	if f.indicator.errors != 1 {
		t.Errorf("expected an error indication for the failed open, got %d", f.indicator.errors)
	}

	f.engine.failConnect = false
	f.task.Cycle()

	if len(f.engine.connectedFiles) != 1 || f.engine.connectedFiles[0] != tracks[1] {
		t.Fatalf("expected retry with second track, got %v", f.engine.connectedFiles)
	}
}

func TestVolumeMailboxApplied(t *testing.T) {
	f := newTaskFixture(t)

	f.volumeQ.Put(7)
	f.task.Cycle()

	if f.engine.volume != 7 {
		t.Errorf("expected engine volume 7, got %d", f.engine.volume)
	}
	if got := f.state.Snapshot().Volume; got != 7 {
		t.Errorf("expected state volume 7, got %d", got)
	}
	if f.indicator.volumes != 1 {
		t.Errorf("expected 1 volume indication, got %d", f.indicator.volumes)
	}
}

func TestWebstreamConnectsToHost(t *testing.T) {
	f := newTaskFixture(t)
	url := "http://radio.example/stream"

	f.startPlaylist(t, playback.Webstream, "radio1", []string{url})

	if len(f.engine.connectedHosts) != 1 || f.engine.connectedHosts[0] != url {
		t.Fatalf("expected webstream connection, got %v", f.engine.connectedHosts)
	}

	snap := f.state.Snapshot()
	if !snap.IsWebstream {
		t.Error("expected webstream flag")
	}
	if snap.Title != "Webradio" {
		t.Errorf("unexpected title %q", snap.Title)
	}
}

func TestResumeSeekAppliedOnce(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "ch01.mp3", "ch02.mp3")

	f.state.Update(func(s *playback.State) { s.StartAtFilePos = 12345 })
	f.startPlaylist(t, playback.Audiobook, "book1", tracks)

	if len(f.engine.seekBytes) != 1 || f.engine.seekBytes[0] != 12345 {
		t.Fatalf("expected one resume seek to 12345, got %v", f.engine.seekBytes)
	}
	if got := f.state.Snapshot(); got.PlaylistFinished {
		t.Error("expected playback to be active")
	}

	// A later track must not inherit the seek.
	f.engine.finished = true
	f.task.Cycle()
	if len(f.engine.seekBytes) != 1 {
		t.Errorf("expected no further seeks, got %v", f.engine.seekBytes)
	}
}

func TestSeekRequestServicedOutsideTransitions(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.state.Update(func(s *playback.State) { s.SeekMode = playback.SeekForwards })
	f.task.Cycle()

	if len(f.engine.seekOffsets) != 1 || f.engine.seekOffsets[0] != 30 {
		t.Fatalf("expected +30s seek, got %v", f.engine.seekOffsets)
	}

	if mode := seekMode(f.state); mode != playback.SeekNormal {
		t.Errorf("expected seek request to be cleared, got %d", mode)
	}
}

func TestMonoRequestAppliedToEngine(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.state.Update(func(s *playback.State) { s.NewPlayMono = true })
	f.task.Cycle()

	if !f.engine.mono {
		t.Error("expected the engine to be switched to mono")
	}
	var current bool
	f.state.Read(func(s *playback.State) { current = s.CurrentPlayMono })
	if !current {
		t.Error("expected the applied mono setting to be recorded")
	}

	f.state.Update(func(s *playback.State) { s.NewPlayMono = false })
	f.task.Cycle()
	if f.engine.mono {
		t.Error("expected the engine to be switched back to stereo")
	}
}

func seekMode(state *playback.State) playback.SeekMode {
	var mode playback.SeekMode
	state.Read(func(s *playback.State) { mode = s.SeekMode })
	return mode
}

func TestEngineNotRunningForcesTrackTransition(t *testing.T) {
	f := newTaskFixture(t)
	tracks := writeTracks(t, "01.mp3", "02.mp3")
	f.startPlaylist(t, playback.AllTracksOfDirSorted, "tag1", tracks)

	f.engine.running = false
	for i := 0; i < 200; i++ {
		f.task.Cycle()
	}
	f.task.Cycle() // consumes the forced trackFinished

	files := f.engine.connectedFiles
	if len(files) != 2 || files[1] != tracks[1] {
		t.Fatalf("expected forced advance to second track, got %v", files)
	}
}
