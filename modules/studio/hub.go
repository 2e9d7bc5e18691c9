package studio

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bagify-server/modules/carousel"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	MessageHello               = "hello"
	MessageProgress            = "progress"
	MessageExtractionStarted   = "extraction_started"
	MessageExtractionCompleted = "extraction_completed"
	MessageExtractionFailed    = "extraction_failed"
	MessageSessionReset        = "session_reset"
)

// Message - 웹소켓으로 전송되는 메시지
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Status    string          `json:"status,omitempty"`
	Event     *carousel.Event `json:"event,omitempty"`
	Error     *ErrorView      `json:"error,omitempty"`
}

// 연결된 클라이언트
type hubClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// Hub - 세션별 진행 상황 구독자 관리
type Hub struct {
	mutex sync.RWMutex
	rooms map[string]map[*hubClient]struct{}

	totalConnections int
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*hubClient]struct{})}
}

// Reporter returns a carousel.Reporter that forwards pipeline events to a session's subscribers.
func (h *Hub) Reporter(sessionID string) carousel.Reporter {
	return carousel.ReporterFunc(func(e carousel.Event) {
		ev := e
		h.Broadcast(Message{Type: MessageProgress, SessionID: sessionID, Event: &ev})
	})
}

// Broadcast - 세션의 모든 클라이언트에게 전송 (느린 클라이언트는 끊음)
func (h *Hub) Broadcast(msg Message) {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[msg.SessionID] {
		select {
		case client.send <- messageBytes:
		default:
			close(client.send)
			delete(h.rooms[msg.SessionID], client)
		}
	}
}

// Serve - 이미 존재가 확인된 세션에 대해 웹소켓 업그레이드
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, hello Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &hubClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
	if raw, err := json.Marshal(hello); err == nil {
		client.send <- raw
	}
	h.add(client)

	go client.writePump()
	go h.readPump(client)
}

func (h *Hub) add(c *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*hubClient]struct{})
		h.rooms[c.sessionID] = room
	}
	room[c] = struct{}{}
	h.totalConnections++
	log.Printf("👤 Subscriber joined session %s (Subscribers: %d)", c.sessionID, len(room))
}

func (h *Hub) remove(c *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room := h.rooms[c.sessionID]
	if _, ok := room[c]; ok {
		close(c.send)
		delete(room, c)
		log.Printf("👋 Subscriber left session %s (Remaining: %d)", c.sessionID, len(room))
	}
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
}

// CloseSession disconnects every subscriber of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[sessionID] {
		close(client.send)
	}
	delete(h.rooms, sessionID)
}

// Subscribers - 세션 구독자 수
func (h *Hub) Subscribers(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[sessionID])
}

// Stats - 현재/누적 연결 수
func (h *Hub) Stats() (current, total int) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, room := range h.rooms {
		current += len(room)
	}
	return current, h.totalConnections
}

// 클라이언트 메시지는 무시, 연결 종료 감지용
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *hubClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
