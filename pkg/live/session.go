package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/store"
)

// Session is one shared document and the clients editing it
type Session struct {
	ID     string
	store  *store.Store
	server *Server

	// mu orders applies, broadcasts and snapshot writes so clients and the
	// cache see batches in sequence order
	mu      sync.Mutex
	clients map[string]*client
	seq     uint64
}

// Store returns the session's document store
func (s *Session) Store() *store.Store {
	return s.store
}

// Seq returns the sequence number of the last applied batch
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Clients returns the number of connected clients
func (s *Session) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Apply reconciles cs into the session document and broadcasts it to every
// client except origin. It returns the batch's sequence number.
func (s *Session) Apply(origin string, cs flow.ChangeSet) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.applyLocked(origin, cs)
	if err != nil || cs.Empty() {
		return seq, err
	}
	s.server.metrics.RecordChangeSet(cs)
	s.server.persist(s.ID, s.store.ToObject())
	return seq, nil
}

// SetDocument moves the session onto doc through the diff between the
// current document and doc
func (s *Session) SetDocument(origin string, doc flow.Document) (flow.ChangeSet, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := flow.DiffDocuments(s.store.ToObject(), doc)
	seq, err := s.applyLocked(origin, cs)
	if err != nil || cs.Empty() {
		return cs, seq, err
	}
	s.server.metrics.RecordChangeSet(cs)
	s.server.persist(s.ID, s.store.ToObject())
	return cs, seq, nil
}

func (s *Session) applyLocked(origin string, cs flow.ChangeSet) (uint64, error) {
	if cs.Empty() {
		return s.seq, nil
	}
	if err := s.store.Apply(cs); err != nil {
		return s.seq, err
	}
	s.seq++

	frame, err := ChangesFrame(s.seq, origin, cs)
	if err != nil {
		return s.seq, err
	}
	data, err := EncodeFrame(frame)
	if err != nil {
		return s.seq, err
	}
	for id, c := range s.clients {
		if id == origin {
			continue
		}
		if c.enqueue(data) {
			s.server.metrics.FramesSent.WithLabelValues(string(FrameChanges)).Inc()
		}
	}
	return s.seq, nil
}

// attach registers c and queues its hello and snapshot frames. Holding the
// lock keeps broadcasts from slipping in between.
func (s *Session) attach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.id] = c
	s.server.sendFrame(s, c, Frame{Type: FrameHello, Seq: s.seq, Session: s.ID, Client: c.id})
	s.server.sendFrame(s, c, SnapshotFrame(s.seq, s.store.ToObject()))
}

func (s *Session) resync(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.sendFrame(s, c, SnapshotFrame(s.seq, s.store.ToObject()))
}

func (s *Session) detach(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
}

// persist writes the current snapshot. It takes the lock so it cannot race
// a newer write from Apply.
func (s *Session) persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.persist(s.ID, s.store.ToObject())
}

func (s *Session) close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	s.store.Close()
}

// client is one websocket connection
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// enqueue queues a frame without blocking. A client whose buffer is full
// is too slow to keep up and gets disconnected.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.closeChan:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.close()
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
}

// writer handles writing frames to the websocket
func (c *client) writer(s *Server, sessionID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debugf("[Live Session %s] Failed to write to %s: %v", sessionID, c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
