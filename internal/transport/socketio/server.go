// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/fablebox/fablebox/internal/domain/control"
	"github.com/fablebox/fablebox/internal/domain/playback"
	"github.com/fablebox/fablebox/internal/domain/tags"
)

// Commander is the control surface the transport drives: admin commands,
// direct track commands and absolute volume.
type Commander interface {
	Execute(cmd control.Command) error
	Track(cmd playback.TrackCommand)
	SetVolume(v int)
}

// TagHandler processes tag scans submitted over the wire, mirroring a
// physical scan.
type TagHandler interface {
	HandleTag(tagID string) error
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	state    *playback.State
	commands Commander
	tagsIn   TagHandler
	registry *tags.Registry

	debouncer *BroadcastDebouncer
	limiter   *ConnectionLimiter

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a new Socket.io server.
func NewServer(state *playback.State, commands Commander, tagsIn TagHandler,
	registry *tags.Registry, maxExternalClients int) (*Server, error) {

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:       server,
		state:    state,
		commands: commands,
		tagsIn:   tagsIn,
		registry: registry,
		limiter:  NewConnectionLimiter(maxExternalClients),
		clients:  make(map[string]*socket.Socket),
	}
	s.debouncer = NewBroadcastDebouncer(150*time.Millisecond, s.BroadcastState)

	s.setupHandlers()

	return s, nil
}

// StateChanged implements the playback notifier: observable state changed,
// push it out once the debounce window closes.
func (s *Server) StateChanged() {
	s.debouncer.Trigger()
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		remoteIP := remoteAddr(client)
		_, evicted := s.limiter.TryAdd(clientID, remoteIP)
		if evicted != "" {
			s.disconnectClient(evicted)
		}

		log.Info().Str("id", clientID).Str("remote", remoteIP).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			client.Emit("pushState", s.state.Snapshot())
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			client.Emit("pushState", s.state.Snapshot())
		})

		client.On("play", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("play")
			s.commands.Track(playback.Play)
		})

		client.On("pause", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("pause")
			s.commands.Track(playback.PausePlay)
		})

		client.On("stop", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("stop")
			s.commands.Track(playback.Stop)
		})

		client.On("next", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("next")
			s.commands.Track(playback.NextTrack)
		})

		client.On("prev", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("prev")
			s.commands.Track(playback.PreviousTrack)
		})

		client.On("first", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("first")
			s.commands.Track(playback.FirstTrack)
		})

		client.On("last", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("last")
			s.commands.Track(playback.LastTrack)
		})

		client.On("volume", func(args ...any) {
			if len(args) > 0 {
				if vol, ok := args[0].(float64); ok {
					log.Debug().Str("id", clientID).Float64("vol", vol).Msg("volume")
					s.commands.SetVolume(int(vol))
				}
			}
		})

		client.On("seek", func(args ...any) {
			if len(args) == 0 {
				return
			}
			dir, ok := args[0].(string)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Str("direction", dir).Msg("seek")
			switch dir {
			case "forward":
				s.execute(control.CmdSeekForwards)
			case "backward":
				s.execute(control.CmdSeekBackwards)
			}
		})

		client.On("mono", func(args ...any) {
			if len(args) == 0 {
				return
			}
			mono, ok := args[0].(bool)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Bool("mono", mono).Msg("mono")
			s.state.Update(func(st *playback.State) { st.NewPlayMono = mono })
		})

		client.On("command", func(args ...any) {
			if len(args) == 0 {
				return
			}
			code, ok := args[0].(float64)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Int("code", int(code)).Msg("command")
			s.execute(control.Command(code))
		})

		client.On("rfid", func(args ...any) {
			if len(args) == 0 {
				return
			}
			tagID, ok := args[0].(string)
			if !ok {
				return
			}
			log.Info().Str("id", clientID).Str("tag", tagID).Msg("Tag scan via web client")
			if err := s.tagsIn.HandleTag(tagID); err != nil {
				client.Emit("pushError", err.Error())
			}
		})

		client.On("assignTag", func(args ...any) {
			if len(args) == 0 {
				return
			}
			m, ok := args[0].(map[string]interface{})
			if !ok {
				return
			}
			s.assignTag(client, m)
		})

		client.On("deleteTag", func(args ...any) {
			if len(args) == 0 {
				return
			}
			tagID, ok := args[0].(string)
			if !ok {
				return
			}
			log.Info().Str("tag", tagID).Msg("Deleting tag assignment")
			if err := s.registry.Remove(tagID); err != nil {
				client.Emit("pushError", err.Error())
			}
		})

		client.On("getTag", func(args ...any) {
			if len(args) == 0 {
				return
			}
			tagID, ok := args[0].(string)
			if !ok {
				return
			}
			rec, err := s.registry.Lookup(tagID)
			if err != nil {
				client.Emit("pushError", err.Error())
				return
			}
			client.Emit("pushTag", map[string]interface{}{
				"id":         tagID,
				"target":     rec.Target,
				"mode":       rec.Mode,
				"trackIndex": rec.TrackIndex,
				"position":   rec.Position,
			})
		})
	})
}

// assignTag validates and stores a tag assignment received from the web UI.
func (s *Server) assignTag(client *socket.Socket, m map[string]interface{}) {
	tagID, _ := m["id"].(string)
	target, _ := m["target"].(string)
	mode, _ := m["mode"].(float64)
	trackIndex, _ := m["trackIndex"].(float64)

	if tagID == "" || mode <= 0 {
		client.Emit("pushError", "tag id and mode are required")
		return
	}

	rec := tags.Record{
		Target:     target,
		Mode:       uint32(mode),
		TrackIndex: int(trackIndex),
	}
	if !rec.IsCommand() && !rec.PlayMode().Valid() {
		client.Emit("pushError", "invalid play mode")
		return
	}

	log.Info().Str("tag", tagID).Uint32("mode", rec.Mode).Str("target", target).Msg("Assigning tag")
	if err := s.registry.Assign(tagID, rec); err != nil {
		client.Emit("pushError", err.Error())
	}
}

func (s *Server) execute(cmd control.Command) {
	if err := s.commands.Execute(cmd); err != nil {
		log.Error().Err(err).Str("command", cmd.String()).Msg("Command failed")
	}
}

// BroadcastState sends the current playback snapshot to all connected
// clients.
func (s *Server) BroadcastState() {
	s.io.Emit("pushState", s.state.Snapshot())

	if log.Debug().Enabled() {
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().Int("clients", clientCount).Msg("Broadcast state")
	}
}

func (s *Server) disconnectClient(clientID string) {
	s.mu.RLock()
	client := s.clients[clientID]
	s.mu.RUnlock()

	if client != nil {
		log.Info().Str("id", clientID).Msg("Evicting oldest external client")
		client.Disconnect(true)
	}
}

// remoteAddr extracts the client's IP from the handshake address.
func remoteAddr(client *socket.Socket) string {
	addr := client.Handshake().Address
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}
