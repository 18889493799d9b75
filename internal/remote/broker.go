package remote

import "context"

// Broker is the transport binding the RemoteHandler drives. It isolates
// the wire protocol so RemoteHandler's sanitizer, inbox and last-will
// discipline apply unchanged to any pub/sub broker — the gorilla/
// websocket binding in websocket_broker.go today, a real MQTT client
// library (e.g. eclipse/paho.mqtt.golang) if one is substituted later.
type Broker interface {
	// Connect dials the broker and registers onMessage as the callback
	// invoked for every inbound publish. The callback must do nothing
	// but hand the message to the caller — sanitize-and-enqueue is the
	// RemoteHandler's job, not the broker's (§9 "callback-driven
	// receive").
	Connect(ctx context.Context, onMessage func(topic, payload string), onDisconnect func()) error

	// Publish sends one message. Implementations must serialize
	// concurrent callers themselves or document that the caller does
	// (RemoteHandler serializes with its own mutex per §4.3).
	Publish(topic, payload string) error

	// Subscribe and Unsubscribe are synchronous against the broker.
	Subscribe(topic string) error
	Unsubscribe(topic string) error

	// RegisterLastWill sets the (topic, payload) published by the broker
	// if this connection drops without a clean disconnect.
	RegisterLastWill(topic, payload string, qos int)

	// Close tears the connection down.
	Close() error

	// ClientID returns this connection's broker-assigned or configured
	// client identifier.
	ClientID() string
}
