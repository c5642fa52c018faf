package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"blackfong-core/app/domains"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "blackfong.events."

// EventPublisher fans audit entries out to other processes
type EventPublisher interface {
	Publish(entry domains.EventLogEntry) error
	Close()
}

// NATSPublisher publishes audit entries on blackfong.events.<source>
type NATSPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to url and keeps reconnecting in the background
func NewNATSPublisher(url string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("blackfong-core"),
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
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Subject returns the subject an entry is published on
func Subject(entry domains.EventLogEntry) string {
	return subjectPrefix + entry.Source
}

// Publish sends the entry as JSON
func (p *NATSPublisher) Publish(entry domains.EventLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(entry), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", zap.Error(err))
		p.nc.Close()
	}
}
