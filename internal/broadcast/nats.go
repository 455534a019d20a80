// internal/broadcast/nats.go
package broadcast

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS publishes broadcasts to a NATS server so other processes (e.g. a separate WebSocket edge)
// can relay them. Channel "lobbies/1234" maps to subject "<prefix>.lobbies.1234".
type NATS struct {
	conn   *nats.Conn
	prefix string
	logger logrus.FieldLogger
}

// ConnectNATS dials the server with infinite reconnects.
func ConnectNATS(url, prefix string, logger logrus.FieldLogger) (*NATS, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATS{conn: nc, prefix: prefix, logger: logger}, nil
}

// Subject converts a channel name into a NATS subject.
func Subject(prefix, channel string) string {
	subject := strings.ReplaceAll(channel, "/", ".")
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

func (n *NATS) Publish(channel string, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		n.logger.WithError(err).WithField("channel", channel).Error("failed to encode broadcast")
		return
	}
	subject := Subject(n.prefix, channel)
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"subject":     subject,
			"instruction": msg.Instruction.String(),
		}).Error("failed to publish to NATS")
	}
}

// Close flushes pending publishes and closes the connection.
func (n *NATS) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.WithError(err).Warn("NATS drain failed")
	}
}
