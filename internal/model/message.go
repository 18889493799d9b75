package model

// Message is the (topic, payload) pair that flows through the inbox,
// per §3. Topics and payloads are restricted to a printable,
// punctuation-limited character set by the Remote Handler's sanitizer;
// a violation collapses both fields to the error sentinel below.
type Message struct {
	Topic   string
	Payload string
}

// ErrorTopic and ErrorPayload are the sentinel a sanitized-away message
// is rewritten to (§4.3, testable property #6).
const (
	ErrorTopic   = "margot/error"
	ErrorPayload = ""
)

// IsError reports whether m is the sanitizer's error sentinel.
func (m Message) IsError() bool {
	return m.Topic == ErrorTopic && m.Payload == ErrorPayload
}

// DisconnectTopic is the synthetic topic the Remote Handler enqueues to
// signal a broker-level disconnect (§3 "ownership", §4.3 "last will").
const DisconnectTopic = "$disconnect$"

// IsDisconnect reports whether m is the disconnect sentinel.
func (m Message) IsDisconnect() bool {
	return m.Topic == DisconnectTopic
}
