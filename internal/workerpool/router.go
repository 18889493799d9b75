// Package workerpool implements the Worker Pool and topic router of
// §4.4: a fixed pool of goroutines draining a shared message source,
// parsing each topic into (kind, application id, client id), and
// dispatching to a Dispatcher (the Application Manager).
package workerpool

import (
	"strings"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// Kind is the decoded message kind of §4.4.
type Kind int

const (
	KindSystem Kind = iota
	KindWelcome
	KindInfo
	KindObservation
	KindKia
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindWelcome:
		return "welcome"
	case KindInfo:
		return "info"
	case KindObservation:
		return "observation"
	case KindKia:
		return "kia"
	default:
		return "error"
	}
}

func kindFromSegment(s string) (Kind, bool) {
	switch s {
	case "welcome":
		return KindWelcome, true
	case "info":
		return KindInfo, true
	case "observation":
		return KindObservation, true
	case "kia":
		return KindKia, true
	default:
		return KindError, false
	}
}

// Route is the parsed form of an inbound message, ready for dispatch.
type Route struct {
	Kind     Kind
	AppID    appid.ID // zero value for System and Error
	ClientID string
	Payload  string
}

// ParseTopic implements the router of §4.4: split on '/'; the last two
// segments are (kind, client_id); index 1 (the application identifier)
// splits on '^' into (name, block, version). "margot/system/<id>" and
// the sanitizer's error sentinel are special-cased since they carry no
// application identifier.
func ParseTopic(m model.Message) Route {
	if m.IsError() {
		return Route{Kind: KindError, Payload: m.Payload}
	}

	parts := strings.Split(m.Topic, "/")
	if len(parts) < 2 {
		return Route{Kind: KindError, Payload: m.Payload}
	}

	if parts[1] == "system" {
		id := ""
		if len(parts) >= 3 {
			id = parts[len(parts)-1]
		}
		return Route{Kind: KindSystem, ClientID: id, Payload: m.Payload}
	}

	if len(parts) < 4 {
		return Route{Kind: KindError, Payload: m.Payload}
	}

	kindSeg := parts[len(parts)-2]
	clientID := parts[len(parts)-1]

	kind, ok := kindFromSegment(kindSeg)
	if !ok {
		return Route{Kind: KindError, Payload: m.Payload}
	}

	id, err := appid.Parse(parts[1])
	if err != nil {
		return Route{Kind: KindError, Payload: m.Payload}
	}

	return Route{Kind: kind, AppID: id, ClientID: clientID, Payload: m.Payload}
}
