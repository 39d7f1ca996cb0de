// Package system is the supervisory layer: sleep timers, the inactivity
// watchdog, controls locking and the radio/service toggles.
package system

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager tracks device-level switches and drives the two paths into sleep:
// explicit timers and the inactivity watchdog. onSleep is invoked exactly
// once, from its own goroutine, when sleep is first requested.
type Manager struct {
	mu sync.Mutex

	sleepTimer    *time.Timer
	sleepTimerDur time.Duration

	inactivity      time.Duration
	inactivityTimer *time.Timer
	lastKick        time.Time

	controlsLocked bool
	nightmode      bool
	wifiEnabled    bool
	bluetoothMode  bool
	ftpEnabled     bool

	sleepRequested bool
	onSleep        func()
}

// NewManager creates a Manager. inactivity <= 0 disables the watchdog.
// onSleep may be nil.
func NewManager(inactivity time.Duration, onSleep func()) *Manager {
	m := &Manager{
		inactivity:  inactivity,
		wifiEnabled: true,
		onSleep:     onSleep,
	}
	if inactivity > 0 {
		m.inactivityTimer = time.AfterFunc(inactivity, func() {
			log.Info().Dur("after", inactivity).Msg("Inactivity watchdog fired")
			m.RequestSleep()
		})
	}
	return m
}

// RequestSleep puts the device on the path to sleep. Further requests are
// ignored.
func (m *Manager) RequestSleep() {
	m.mu.Lock()
	if m.sleepRequested {
		m.mu.Unlock()
		return
	}
	m.sleepRequested = true
	m.stopTimersLocked()
	onSleep := m.onSleep
	m.mu.Unlock()

	log.Info().Msg("Sleep requested")
	if onSleep != nil {
		go onSleep()
	}
}

// SleepRequested reports whether sleep has been requested.
func (m *Manager) SleepRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sleepRequested
}

// SetSleepTimer arms the sleep timer for d. Re-arming with the duration of
// the currently active timer cancels it instead.
func (m *Manager) SetSleepTimer(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sleepTimer != nil && m.sleepTimerDur == d {
		m.sleepTimer.Stop()
		m.sleepTimer = nil
		m.sleepTimerDur = 0
		log.Info().Dur("duration", d).Msg("Sleep timer cancelled")
		return
	}
	if m.sleepTimer != nil {
		m.sleepTimer.Stop()
	}
	m.sleepTimerDur = d
	m.sleepTimer = time.AfterFunc(d, func() {
		log.Info().Dur("after", d).Msg("Sleep timer fired")
		m.RequestSleep()
	})
	log.Info().Dur("duration", d).Msg("Sleep timer armed")
}

// UpdateActivityTimer pushes the inactivity watchdog out. It is called from
// the playback cycle while audio plays, so resets are throttled to once a
// second.
func (m *Manager) UpdateActivityTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inactivityTimer == nil || m.sleepRequested {
		return
	}
	now := time.Now()
	if now.Sub(m.lastKick) < time.Second {
		return
	}
	m.lastKick = now
	m.inactivityTimer.Reset(m.inactivity)
}

// ToggleControlsLock flips the controls lock and returns the new state.
// While locked, physical controls are ignored; tag scans still work.
func (m *Manager) ToggleControlsLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlsLocked = !m.controlsLocked
	return m.controlsLocked
}

// ControlsLocked reports whether physical controls are locked.
func (m *Manager) ControlsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controlsLocked
}

// ToggleNightmode flips the LED nightmode flag and returns the new state.
func (m *Manager) ToggleNightmode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nightmode = !m.nightmode
	return m.nightmode
}

// ToggleWifi flips the WiFi flag and returns the new state. The flag takes
// effect on the next boot.
func (m *Manager) ToggleWifi() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wifiEnabled = !m.wifiEnabled
	return m.wifiEnabled
}

// ToggleBluetooth flips the Bluetooth output flag and returns the new state.
// The flag takes effect on the next boot.
func (m *Manager) ToggleBluetooth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bluetoothMode = !m.bluetoothMode
	return m.bluetoothMode
}

// EnableFTP enables the file transfer service until the next sleep.
func (m *Manager) EnableFTP() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ftpEnabled {
		return
	}
	m.ftpEnabled = true
	log.Info().Msg("FTP service enabled")
}

// FTPEnabled reports whether the file transfer service is enabled.
func (m *Manager) FTPEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ftpEnabled
}

// Close stops all timers without requesting sleep.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
}

func (m *Manager) stopTimersLocked() {
	if m.sleepTimer != nil {
		m.sleepTimer.Stop()
		m.sleepTimer = nil
	}
	if m.inactivityTimer != nil {
		m.inactivityTimer.Stop()
		m.inactivityTimer = nil
	}
}
