package remote

import "github.com/teranos/agora/internal/model"

// topicCharset and payloadCharset are the printable, punctuation-limited
// whitelists of §4.3. Anything outside these collapses the message to
// the error sentinel — defense-in-depth against broker misuse.
func isTopicChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '/':
		return true
	}
	return false
}

func isPayloadChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '_', ' ', '-', '.', ',', '@', '<', '>', '=', ';', '(', ')', '^', '*', '+':
		return true
	}
	return false
}

// Sanitize validates a message's topic and payload against the
// whitelists. A violation on either field rewrites the whole message to
// the error sentinel (testable property #6), logged at WARNING by the
// caller.
func Sanitize(m model.Message) (model.Message, bool) {
	for _, r := range m.Topic {
		if !isTopicChar(r) {
			return model.Message{Topic: model.ErrorTopic, Payload: model.ErrorPayload}, false
		}
	}
	for _, r := range m.Payload {
		if !isPayloadChar(r) {
			return model.Message{Topic: model.ErrorTopic, Payload: model.ErrorPayload}, false
		}
	}
	return m, true
}
