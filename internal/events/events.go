package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"voicecapture/internal/config"
)

const defaultSubjectPrefix = "feedback"

// Event is the message body published for every record change.
type Event struct {
	Kind    string          `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher sends record events to NATS. A nil Publisher drops events.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

// Connect returns nil, nil when no url is configured.
func Connect(cfg config.NATSConfig, log *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	prefix := strings.Trim(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("voicecapture"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info("connected to nats", zap.String("url", nc.ConnectedUrl()), zap.String("prefix", prefix))
	return &Publisher{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject events of kind are published on.
func (p *Publisher) Subject(kind string) string {
	if p == nil {
		return defaultSubjectPrefix + "." + kind
	}
	return p.prefix + "." + kind
}

// Publish sends payload as an Event on <prefix>.<kind>.
func (p *Publisher) Publish(ctx context.Context, kind string, payload any) error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	data, err := json.Marshal(Event{Kind: kind, Time: time.Now().UTC(), Payload: body})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	if err := p.nc.Publish(p.Subject(kind), data); err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}
	return nil
}

// Subscribe calls handler for every event under the prefix until ctx ends.
func (p *Publisher) Subscribe(ctx context.Context, handler func(subject string, ev Event)) error {
	if p == nil || p.nc == nil {
		return fmt.Errorf("nats is not configured")
	}
	sub, err := p.nc.Subscribe(p.prefix+".>", func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			p.log.Warn("decode event failed", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(msg.Subject, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", p.prefix, err)
	}
	defer sub.Unsubscribe()
	<-ctx.Done()
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
