package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/pkg/config"
)

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

// WSWatcher opens watch subscriptions over the document store's WebSocket
// endpoint. One connection per watched collection.
type WSWatcher struct {
	watchURL string
	apiKey   string
	dialer   *websocket.Dialer
	logger   *zap.Logger
}

// NewWSWatcher constructs a Watcher.
func NewWSWatcher(cfg config.RemoteConfig, logger *zap.Logger) *WSWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSWatcher{
		watchURL: cfg.WatchURL,
		apiKey:   cfg.APIKey,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		logger:   logger,
	}
}

type subscribeFrame struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
}

// Watch dials the watch endpoint, sends the subscribe frame and starts the
// delivery loop. Events arrive on a background goroutine; callers must hand
// them to their own serialized consumer before touching local state.
func (w *WSWatcher) Watch(ctx context.Context, collection string, filters []Filter) (Subscription, error) {
	endpoint := w.watchURL
	if w.apiKey != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse watch url: %w", err)
		}
		q := u.Query()
		q.Set("apiKey", w.apiKey)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	conn, _, err := w.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial watch endpoint: %w", err)
	}

	if err := conn.WriteJSON(subscribeFrame{Collection: collection, Filters: filters}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	sub := &wsSubscription{
		collection: collection,
		conn:       conn,
		changes:    make(chan Change, 64),
		done:       make(chan struct{}),
		logger:     w.logger,
	}
	go sub.readPump()
	go sub.pingPump()
	return sub, nil
}

type wsSubscription struct {
	collection string
	conn       *websocket.Conn
	changes    chan Change
	done       chan struct{}
	logger     *zap.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *wsSubscription) Changes() <-chan Change { return s.changes }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the connection. Safe to call more than once.
func (s *wsSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(watchWriteWait))
	return s.conn.Close()
}

func (s *wsSubscription) readPump() {
	defer close(s.changes)

	s.conn.SetReadDeadline(time.Now().Add(watchPongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(watchPongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		var change Change
		if err := json.Unmarshal(raw, &change); err != nil {
			s.logger.Warn("dropping malformed watch frame",
				zap.String("collection", s.collection), zap.Error(err))
			continue
		}

		select {
		case s.changes <- change:
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) pingPump() {
	ticker := time.NewTicker(watchPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteWait)); err != nil {
				return
			}
		}
	}
}
