package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sdelrio0/xyflow-flow/internal/cache"
	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 4 << 20
	defaultBufSize = 256
)

// Options configures a Server
type Options struct {
	Logger  *log.Logger
	Metrics *Metrics
	// Cache persists session documents. Sessions restore from it first.
	Cache *cache.Cache
	// Initial returns the document a session starts from when the cache
	// holds nothing for it
	Initial     func(session string) flow.Document
	CheckOrigin func(r *http.Request) bool
	// SendBuffer is the number of frames queued per client before the
	// client is dropped
	SendBuffer int
}

// Server syncs flow documents between websocket clients
type Server struct {
	upgrader websocket.Upgrader
	sessions map[string]*Session
	mu       sync.RWMutex

	logger     *log.Logger
	metrics    *Metrics
	cache      *cache.Cache
	initial    func(string) flow.Document
	sendBuffer int
}

// NewServer creates a new live sync server
func NewServer(opts Options) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     opts.CheckOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions:   make(map[string]*Session),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		cache:      opts.Cache,
		initial:    opts.Initial,
		sendBuffer: opts.SendBuffer,
	}
	if s.upgrader.CheckOrigin == nil {
		s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.sendBuffer <= 0 {
		s.sendBuffer = defaultBufSize
	}
	return s
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Routes returns the HTTP handler for the live endpoints
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/live/{session}", s.HandleWebSocket)
	r.Get("/flows", s.HandleSessions)
	r.Get("/flows/{session}", s.HandleDocument)
	r.Post("/flows/{session}/changes", s.HandleChanges)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// OpenSession returns the session with id, creating it if needed
func (s *Server) OpenSession(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session
	}

	doc, source := s.loadDocument(id)
	session := &Session{
		ID:      id,
		store:   store.New(doc, store.WithLogger(s.logger.WithPrefix("store"))),
		server:  s,
		clients: make(map[string]*client),
	}
	s.sessions[id] = session
	s.metrics.ActiveSessions.Inc()

	s.logger.Infof("[Live Session %s] Opened from %s with %d nodes, %d edges", id, source, len(doc.Nodes), len(doc.Edges))
	return session
}

func (s *Server) loadDocument(id string) (flow.Document, string) {
	if s.cache != nil {
		doc, err := s.cache.Load(id)
		if err == nil {
			return doc, "snapshot"
		}
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warnf("[Live Session %s] Ignoring unreadable snapshot: %v", id, err)
		}
	}
	if s.initial != nil {
		return s.initial(id), "initial document"
	}
	return flow.Document{}, "empty document"
}

// Session retrieves a session by ID
func (s *Server) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// SessionIDs returns the open session ids in sorted order
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseSession disconnects a session's clients, persists it and forgets it
func (s *Server) CloseSession(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	session.close()
	session.persist()
	s.metrics.ActiveSessions.Dec()
}

// Close closes every session
func (s *Server) Close() {
	for _, id := range s.SessionIDs() {
		s.CloseSession(id)
	}
}

// HandleWebSocket upgrades the connection and joins the session named in
// the path
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	if sessionID == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("[Live Server] Failed to upgrade connection: %v", err)
		return
	}

	session := s.OpenSession(sessionID)
	c := &client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, s.sendBuffer),
		closeChan: make(chan struct{}),
	}

	go c.writer(s, session.ID)
	s.metrics.ConnectedClients.Inc()
	session.attach(c)
	s.logger.Infof("[Live Session %s] Client %s connected", session.ID, c.id)

	s.readLoop(session, c)

	session.detach(c)
	s.metrics.ConnectedClients.Dec()
	s.logger.Infof("[Live Session %s] Client %s disconnected", session.ID, c.id)
}

func (s *Server) readLoop(session *Session, c *client) {
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnf("[Live Session %s] Unexpected close: %v", session.ID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			s.reject(session, c, "binary", errors.New("only text frames are supported"))
			continue
		}
		s.handleFrame(session, c, data)
	}
}

// handleFrame processes one client frame
func (s *Server) handleFrame(session *Session, c *client, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		s.reject(session, c, "decode", err)
		return
	}

	switch frame.Type {
	case FrameChanges:
		cs, err := frame.ChangeSet()
		if err != nil {
			s.reject(session, c, "invalid_change", err)
			return
		}
		seq, err := session.Apply(c.id, cs)
		if err != nil {
			s.reject(session, c, "apply", err)
			return
		}
		s.logger.Debugf("[Live Session %s] Applied %d changes from %s as seq %d", session.ID, cs.Len(), c.id, seq)

	case FrameHello:
		// A client that fell behind asks for a fresh snapshot
		if frame.Seq != session.Seq() {
			session.resync(c)
		}

	case FramePing:
		s.sendFrame(session, c, Frame{Type: FramePong, Seq: session.Seq()})

	default:
		s.reject(session, c, "unexpected", fmt.Errorf("unexpected %s frame from client", frame.Type))
	}
}

func (s *Server) reject(session *Session, c *client, reason string, err error) {
	s.metrics.FramesRejected.WithLabelValues(reason).Inc()
	s.logger.Warnf("[Live Session %s] Rejected frame from %s: %v", session.ID, c.id, err)
	s.sendFrame(session, c, ErrorFrame(err))
}

func (s *Server) sendFrame(session *Session, c *client, f Frame) {
	data, err := EncodeFrame(f)
	if err != nil {
		s.logger.Errorf("[Live Session %s] %v", session.ID, err)
		return
	}
	if c.enqueue(data) {
		s.metrics.FramesSent.WithLabelValues(string(f.Type)).Inc()
	}
}

// HandleSessions lists the open sessions
func (s *Server) HandleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.SessionIDs()})
}

// HandleDocument returns a session's current document
func (s *Server) HandleDocument(w http.ResponseWriter, r *http.Request) {
	session, ok := s.Session(chi.URLParam(r, "session"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Flow-Seq", fmt.Sprint(session.Seq()))
	if err := flow.WriteDocument(session.Store().ToObject(), w); err != nil {
		s.logger.Errorf("[Live Session %s] Failed to write document: %v", session.ID, err)
	}
}

// HandleChanges applies a change set posted as {"nodes": [...], "edges": [...]}
// and broadcasts it to every connected client
func (s *Server) HandleChanges(w http.ResponseWriter, r *http.Request) {
	var cs flow.ChangeSet
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameSize)).Decode(&cs); err != nil {
		s.metrics.FramesRejected.WithLabelValues("http").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	session := s.OpenSession(chi.URLParam(r, "session"))
	seq, err := session.Apply("", cs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"seq": seq})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// persist saves a session snapshot when a cache is configured
func (s *Server) persist(id string, doc flow.Document) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(id, doc); err != nil {
		s.metrics.SnapshotWrites.WithLabelValues("error").Inc()
		s.logger.Warnf("[Live Session %s] Failed to persist snapshot: %v", id, err)
		return
	}
	s.metrics.SnapshotWrites.WithLabelValues("ok").Inc()
}
