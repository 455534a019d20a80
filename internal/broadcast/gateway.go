// internal/broadcast/gateway.go
package broadcast

// Gateway delivers a message to every subscriber of a channel. Delivery is fire-and-forget:
// implementations log their own failures and never block the caller on slow subscribers.
type Gateway interface {
	Publish(channel string, msg Message)
}

// Multi fans one publish out to several gateways, e.g. local WebSocket subscribers and NATS.
type Multi []Gateway

func (m Multi) Publish(channel string, msg Message) {
	for _, g := range m {
		if g != nil {
			g.Publish(channel, msg)
		}
	}
}
