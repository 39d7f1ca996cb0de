package playback

// Engine is the audio decode/output collaborator consumed by the playback
// task. Implementations wrap a concrete backend (e.g. MPD); the task never
// talks to a backend directly.
type Engine interface {
	// ConnectToFile starts decoding a local file.
	ConnectToFile(path string) error
	// ConnectToHost starts streaming from a URL.
	ConnectToHost(url string) error
	// ConnectToSpeech speaks the given text in the given language, if the
	// backend supports speech synthesis.
	ConnectToSpeech(text, lang string) error

	Stop()
	PauseResume()
	SetVolume(v int)
	SetMono(on bool)

	// SetFilePos seeks to an absolute byte offset in the current file.
	SetFilePos(pos uint32) error
	// SetTimeOffset seeks relative by the given number of seconds.
	SetTimeOffset(seconds int) error

	FilePos() uint32
	FileSize() uint32
	// BufferFilled returns the number of bytes sitting in the decode buffer,
	// i.e. read from the file but not yet played.
	BufferFilled() uint32
	// CurrentTime returns seconds of audio played of the current item.
	CurrentTime() uint32

	IsRunning() bool
	// TrackFinished reports (and clears) whether the current item reached its
	// natural end since the last call.
	TrackFinished() bool

	// Loop advances the engine by one decode/output step. Backends that
	// decode autonomously may use it to refresh cached status.
	Loop()
}

// ResumeSaver persists the resume position for the tag that started the
// current playlist. Only the playback task and the dispatcher call it, so
// writes are naturally serialized.
type ResumeSaver interface {
	SaveResume(tagID, track string, playPos uint32, mode PlayMode, trackIndex, numberOfTracks int) error
}

// Indicator is the narrow feedback surface towards LED/telemetry
// collaborators. Every error path signals exactly one Error pulse.
type Indicator interface {
	Error()
	OK()
	Rewind()
	PlaylistProgress()
	VolumeChange()
}

// SystemControl is the supervisory collaborator: sleep requests and the
// inactivity timer that keeps the device awake while playing.
type SystemControl interface {
	RequestSleep()
	UpdateActivityTimer()
}

// Network reports connectivity for webstream dispatch and IP announcement.
type Network interface {
	IsConnected() bool
	IPAddress() string
}

// Notifier is called after observable state changes so transports can push
// updates instead of polling.
type Notifier interface {
	StateChanged()
}

// NopNotifier is used where no transport is attached.
type NopNotifier struct{}

func (NopNotifier) StateChanged() {}
