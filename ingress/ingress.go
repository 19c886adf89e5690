// Package ingress is the length-prefixed TCP listener instrumented clients
// connect to: each frame is a 4-byte big-endian length followed by a
// JSON-encoded Message, dispatched straight into the engine facade.
package ingress

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/embertrace/engine/engine"
	"github.com/embertrace/engine/metrics"
	"github.com/embertrace/engine/model"
)

// maxFrameBytes bounds a single decoded message, guarding against a
// corrupt or hostile length prefix exhausting memory.
const maxFrameBytes = 16 << 20

// Message is one ingested unit of work. Exactly one of the payload fields
// is set, named by Kind.
type Message struct {
	Kind       string              `json:"kind"`
	Instance   *model.NewInstance  `json:"instance,omitempty"`
	SpanEvent  *model.NewSpanEvent `json:"span_event,omitempty"`
	Event      *model.NewEvent     `json:"event,omitempty"`
	Disconnect *model.InstanceID   `json:"disconnect,omitempty"`
}

const (
	KindInstance   = "instance"
	KindSpanEvent  = "span_event"
	KindEvent      = "event"
	KindDisconnect = "disconnect"
)

// Listener accepts instrumented-client connections and feeds decoded
// messages into an Engine.
type Listener struct {
	addr        string
	engine      *engine.Engine
	logger      *zap.Logger
	rateLimit   rate.Limit
	burst       int
	netListener net.Listener
}

// New returns a Listener bound to addr. rateLimit (records/sec) and burst
// bound each connection's sustained ingestion rate; rateLimit <= 0 disables
// limiting.
func New(addr string, eng *engine.Engine, logger *zap.Logger, rateLimit float64, burst int) *Listener {
	return &Listener{addr: addr, engine: eng, logger: logger, rateLimit: rate.Limit(rateLimit), burst: burst}
}

// ListenAndServe binds addr and serves connections until ctx is canceled or
// Close is called.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}
	l.netListener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.logger.Info("ingress listening", zap.String("addr", l.addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept connection: %w", err)
			}
		}
		go l.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.netListener == nil {
		return nil
	}
	return l.netListener.Close()
}

func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	metrics.IngressConnections.Inc()
	defer metrics.IngressConnections.Dec()

	reader := bufio.NewReader(conn)
	var limiter *rate.Limiter
	if l.rateLimit > 0 {
		limiter = rate.NewLimiter(l.rateLimit, l.burst)
	}

	for {
		msg, err := readFrame(reader)
		if err != nil {
			if err != io.EOF {
				l.logger.Debug("ingress connection closed", zap.Error(err), zap.String("remote", conn.RemoteAddr().String()))
			}
			return
		}

		if limiter != nil {
			if err := limiter.Wait(context.Background()); err != nil {
				return
			}
		}

		if err := l.dispatch(msg); err != nil {
			metrics.IngestErrors.WithLabelValues(msg.Kind).Inc()
			l.logger.Warn("failed to process ingress message", zap.Error(err), zap.String("kind", msg.Kind))
			continue
		}
		metrics.RecordsIngested.WithLabelValues(msg.Kind).Inc()
	}
}

func (l *Listener) dispatch(msg Message) error {
	switch msg.Kind {
	case KindInstance:
		if msg.Instance == nil {
			return fmt.Errorf("instance message missing payload")
		}
		_, err := l.engine.InsertInstance(*msg.Instance)
		return err
	case KindSpanEvent:
		if msg.SpanEvent == nil {
			return fmt.Errorf("span_event message missing payload")
		}
		return l.engine.InsertSpanEvent(*msg.SpanEvent)
	case KindEvent:
		if msg.Event == nil {
			return fmt.Errorf("event message missing payload")
		}
		return l.engine.InsertEvent(*msg.Event)
	case KindDisconnect:
		if msg.Disconnect == nil {
			return fmt.Errorf("disconnect message missing payload")
		}
		return l.engine.DisconnectInstance(*msg.Disconnect)
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

func readFrame(r *bufio.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return Message{}, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
