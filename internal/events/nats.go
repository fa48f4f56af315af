package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "brain"

// NATSPublisher publishes events as JSON to NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	owned  bool
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials url and returns a publisher owning the connection.
func ConnectNATS(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("brain"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	p, err := NewNATSPublisher(conn, prefix, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewNATSPublisher publishes on an existing connection, which the caller
// keeps ownership of.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if conn == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject e is published on.
func (p *NATSPublisher) Subject(e Event) string {
	return fmt.Sprintf("%s.%s.memory.%s", p.prefix, subjectToken(e.WorkspaceID), e.Type)
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(e)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection if the
// publisher dialed it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	err := p.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// subjectToken keeps workspace ids from adding subject levels or wildcards.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
