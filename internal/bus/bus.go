// Package bus mirrors timeline updates to a websocket hub so other
// processes (dashboards, loggers) can follow the conversation.
package bus

import (
	"encoding/json"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"copilot/internal/timeline"
)

const (
	KindTimeline = "timeline"

	defaultBacklog = 32
)

type Envelope struct {
	From    string           `json:"from"`
	Kind    string           `json:"kind"`
	Message timeline.Message `json:"message"`
}

// Publisher writes envelopes from a single goroutine. The connection is
// dialed lazily and redialed on the next publish after a write failure.
type Publisher struct {
	url    string
	from   string
	dialer *ws.Dialer

	mu     sync.Mutex
	closed bool
	queue  chan timeline.Message
	done   chan struct{}

	conn *ws.Conn // owned by loop
}

func NewPublisher(url, from string) *Publisher {
	p := &Publisher{
		url:    url,
		from:   from,
		dialer: &ws.Dialer{HandshakeTimeout: 5 * time.Second},
		queue:  make(chan timeline.Message, defaultBacklog),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish never blocks; updates are dropped while the backlog is full.
func (p *Publisher) Publish(m timeline.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- m:
	default:
		log.Warn("bus backlog full, dropping update", "id", m.ID)
	}
}

// Close stops the writer after it has flushed what is already queued.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) loop() {
	defer close(p.done)
	defer func() {
		if p.conn != nil {
			p.conn.WriteMessage(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			p.conn.Close()
		}
	}()

	for m := range p.queue {
		if err := p.write(m); err != nil {
			log.Warn("bus publish failed", "url", p.url, "err", err)
			if p.conn != nil {
				p.conn.Close()
				p.conn = nil
			}
		}
	}
}

func (p *Publisher) write(m timeline.Message) error {
	if p.conn == nil {
		conn, _, err := p.dialer.Dial(p.url, nil)
		if err != nil {
			return err
		}
		log.Debug("connected to bus", "url", p.url)
		p.conn = conn
	}

	payload, err := json.Marshal(Envelope{From: p.from, Kind: KindTimeline, Message: m})
	if err != nil {
		return err
	}
	log.Debug("write bus", "msg", string(payload))
	return p.conn.WriteMessage(ws.TextMessage, payload)
}
