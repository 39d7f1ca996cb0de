// Package control executes admin commands: the numeric codes that tags,
// the web transport and other frontends share for everything that is not a
// direct playlist assignment.
package control

// Command is an admin command code. Codes start at 100; values below that
// range are play modes and never reach the executor.
type Command uint32

const (
	CmdLockButtons Command = 100

	CmdSleepTimer15  Command = 101
	CmdSleepTimer30  Command = 102
	CmdSleepTimer60  Command = 103
	CmdSleepTimer120 Command = 104

	CmdSleepAfterEndOfTrack    Command = 105
	CmdSleepAfterEndOfPlaylist Command = 106
	CmdSleepAfterFiveTracks    Command = 107

	CmdToggleRepeatPlaylist Command = 110
	CmdToggleRepeatTrack    Command = 111

	CmdDimLEDsNightmode Command = 120
	CmdToggleWifi       Command = 130
	CmdToggleBluetooth  Command = 140
	CmdEnableFTP        Command = 150
	CmdTellIPAddress    Command = 151

	CmdPlayPause      Command = 170
	CmdPrevTrack      Command = 171
	CmdNextTrack      Command = 172
	CmdFirstTrack     Command = 173
	CmdLastTrack      Command = 174
	CmdVolumeInit     Command = 175
	CmdVolumeUp       Command = 176
	CmdVolumeDown     Command = 177
	CmdMeasureBattery Command = 178
	CmdSleepNow       Command = 179
	CmdSeekForwards   Command = 180
	CmdSeekBackwards  Command = 181
	CmdStop           Command = 182
)

func (c Command) String() string {
	switch c {
	case CmdLockButtons:
		return "LOCK_BUTTONS"
	case CmdSleepTimer15:
		return "SLEEP_TIMER_15"
	case CmdSleepTimer30:
		return "SLEEP_TIMER_30"
	case CmdSleepTimer60:
		return "SLEEP_TIMER_60"
	case CmdSleepTimer120:
		return "SLEEP_TIMER_120"
	case CmdSleepAfterEndOfTrack:
		return "SLEEP_AFTER_END_OF_TRACK"
	case CmdSleepAfterEndOfPlaylist:
		return "SLEEP_AFTER_END_OF_PLAYLIST"
	case CmdSleepAfterFiveTracks:
		return "SLEEP_AFTER_FIVE_TRACKS"
	case CmdToggleRepeatPlaylist:
		return "TOGGLE_REPEAT_PLAYLIST"
	case CmdToggleRepeatTrack:
		return "TOGGLE_REPEAT_TRACK"
	case CmdDimLEDsNightmode:
		return "DIM_LEDS_NIGHTMODE"
	case CmdToggleWifi:
		return "TOGGLE_WIFI"
	case CmdToggleBluetooth:
		return "TOGGLE_BLUETOOTH"
	case CmdEnableFTP:
		return "ENABLE_FTP"
	case CmdTellIPAddress:
		return "TELL_IP_ADDRESS"
	case CmdPlayPause:
		return "PLAYPAUSE"
	case CmdPrevTrack:
		return "PREVTRACK"
	case CmdNextTrack:
		return "NEXTTRACK"
	case CmdFirstTrack:
		return "FIRSTTRACK"
	case CmdLastTrack:
		return "LASTTRACK"
	case CmdVolumeInit:
		return "VOLUME_INIT"
	case CmdVolumeUp:
		return "VOLUME_UP"
	case CmdVolumeDown:
		return "VOLUME_DOWN"
	case CmdMeasureBattery:
		return "MEASURE_BATTERY"
	case CmdSleepNow:
		return "SLEEP_NOW"
	case CmdSeekForwards:
		return "SEEK_FORWARDS"
	case CmdSeekBackwards:
		return "SEEK_BACKWARDS"
	case CmdStop:
		return "STOP"
	}
	return "UNKNOWN"
}
