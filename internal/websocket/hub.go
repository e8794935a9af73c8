package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseToken(tokenStr string) (uuid.UUID, error)
}

// Hub fans out a student's generation events to every open socket of that
// student. Events arrive on the redis channel user_updates:<student>.
type Hub struct {
	mu          sync.Mutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	auth        tokenParser
	students    middleware.StudentResolver
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, auth tokenParser, students middleware.StudentResolver) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		auth:        auth,
		students:    students,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	studentID, err := h.students.StudentIDForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Student not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(studentID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(studentID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(studentID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[studentID] = append(h.connections[studentID], conn)

	// First socket for this student opens the pub/sub subscription.
	if len(h.connections[studentID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[studentID] = cancel
		go h.subscribeToPubSub(ctx, studentID)
	}

	log.Printf("WebSocket connected: student %s (total: %d)", studentID, len(h.connections[studentID]))
}

func (h *Hub) unregisterConnection(studentID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[studentID]
	for i, c := range conns {
		if c == conn {
			h.connections[studentID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[studentID]) == 0 {
		delete(h.connections, studentID)
		if cancel, ok := h.cancelFuncs[studentID]; ok {
			cancel()
			delete(h.cancelFuncs, studentID)
		}
	}

	log.Printf("WebSocket disconnected: student %s", studentID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, studentID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.UpdatesChannel(studentID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(studentID, []byte(msg.Payload))
		}
	}
}

// broadcast holds the hub lock for the whole fan-out; gorilla connections
// allow only one concurrent writer.
func (h *Hub) broadcast(studentID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.connections[studentID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write to student %s failed: %v", studentID, err)
		}
	}
}

// SendToStudent delivers msg to the student's sockets on this instance only.
func (h *Hub) SendToStudent(studentID uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(studentID, data)
}

// ConnectionCount reports open sockets for a student.
func (h *Hub) ConnectionCount(studentID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[studentID])
}
