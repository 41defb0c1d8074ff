package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Session is one connected client: its authenticated identity, its websocket
// and the outbound buffer the hub delivers through. Room membership lives in
// the hub and is released when the session closes; nothing about it is
// persisted across reconnects.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	User middleware.AuthenticatedUser

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewSession(hub *Hub, conn *websocket.Conn, user middleware.AuthenticatedUser) *Session {
	return &Session{
		hub:  hub,
		conn: conn,
		User: user,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Serve joins the session's initial rooms, confirms the connection to the
// client and runs the read loop until the client goes away. Blocks; the
// caller owns the connection goroutine.
func (s *Session) Serve() {
	s.joinInitialRooms()
	s.Send(types.EventConnected, map[string]interface{}{"message": "Connection established"})

	go s.writePump()
	s.readPump()
}

// joinInitialRooms subscribes the session to its personal topic and to every
// project it may currently observe. Errors leave the session connected with
// whatever rooms were joined; the client can re-issue join_project.
func (s *Session) joinInitialRooms() {
	s.hub.Join(s, UserTopic(s.User.ID))

	projectIDs, err := access.VisibleProjects(s.User)

	if err != nil {
		log.Printf("Failed to resolve visible projects for user %d: %v", s.User.ID, err)
		return
	}

	for _, projectID := range projectIDs {
		s.hub.Join(s, ProjectTopic(projectID))
	}
}

// Send marshals an event and queues it for delivery to this session only.
// Best-effort: a full buffer drops the event rather than blocking.
func (s *Session) Send(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})

	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return
	}

	if !s.enqueue(payload) {
		log.Printf("Dropped %s event for user %d: send buffer full", eventType, s.User.ID)
	}
}

// SendError reports a failure to the originating connection only. Errors are
// never broadcast.
func (s *Session) SendError(message string) {
	s.Send(types.EventError, map[string]interface{}{"message": message})
}

func (s *Session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Close releases the session's room memberships and closes the connection.
// Safe to call from any goroutine, any number of times. In-flight deliveries
// to this session are abandoned silently.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.Unregister(s)

		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for user %d: %v", s.User.ID, err)
			}
			return
		}

		var msg clientMessage

		if err := json.Unmarshal(raw, &msg); err != nil {
			s.SendError("Malformed message")
			continue
		}

		s.dispatch(msg)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) dispatch(msg clientMessage) {
	switch msg.Type {
	case types.CommandJoinProject:
		s.handleJoinProject(msg.Data)
	case types.CommandLeaveProject:
		s.handleLeaveProject(msg.Data)
	case types.CommandPing:
		s.Send(types.EventPong, map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)})
	default:
		if s.hub.commands != nil {
			s.hub.commands.HandleCommand(s, msg.Type, msg.Data)
			return
		}
		s.SendError("Unknown command")
	}
}

type projectRef struct {
	ProjectID uint `json:"project_id"`
}

// handleJoinProject subscribes to a project room after an access check. An
// unauthorized or unknown project is ignored without a reply, so a client
// cannot learn whether the project exists.
func (s *Session) handleJoinProject(data json.RawMessage) {
	var ref projectRef

	if err := json.Unmarshal(data, &ref); err != nil || ref.ProjectID == 0 {
		return
	}

	var project models.Project

	if err := db.DB.First(&project, ref.ProjectID).Error; err != nil {
		return
	}

	allowed, err := access.CanObserve(s.User, project.ID)

	if err != nil || !allowed {
		return
	}

	s.hub.Join(s, ProjectTopic(project.ID))
	s.Send(types.EventJoinedProject, map[string]interface{}{
		"project_id":   project.ID,
		"project_name": project.Name,
	})
}

func (s *Session) handleLeaveProject(data json.RawMessage) {
	var ref projectRef

	if err := json.Unmarshal(data, &ref); err != nil || ref.ProjectID == 0 {
		return
	}

	s.hub.Leave(s, ProjectTopic(ref.ProjectID))
	s.Send(types.EventLeftProject, map[string]interface{}{"project_id": ref.ProjectID})
}
