package events

import (
	"fmt"
	"time"

	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
)

// Kind enumerates the gateway-level events emitted by the transport layer.
// They mirror the external client's lifecycle and message stream so that
// every consumer can be exercised with synthetic events in tests.
type Kind string

const (
	KindQR            Kind = "qr"
	KindAuthenticated Kind = "authenticated"
	KindReady         Kind = "ready"
	KindDisconnected  Kind = "disconnected"
	KindAuthFailure   Kind = "auth_failure"
	KindMessage       Kind = "message"
	KindMessageCreate Kind = "message_create"
	KindMessageAck    Kind = "message_ack"
)

// Event is a tagged union: Kind selects which payload fields are set.
type Event struct {
	Kind Kind

	// KindQR
	QRCode string

	// KindDisconnected / KindAuthFailure
	Reason string

	// KindMessage / KindMessageCreate
	Message *MessageEvent

	// KindMessageAck
	Ack *AckEvent
}

// MessageEvent describes one message observed on the external stream.
// ChatID is the canonical <phone>@c.us identifier when the chat is an
// individual conversation.
type MessageEvent struct {
	MessageID  string
	ChatID     string
	Phone      string
	Body       string
	FromMe     bool
	Individual bool
	Timestamp  time.Time
}

// AckEvent carries a delivery acknowledgement code change.
type AckEvent struct {
	MessageID string
	Ack       int
	Timestamp time.Time
}

// Handler consumes one event. Handlers must tolerate being called from the
// external client's event goroutine.
type Handler func(Event)

// Dispatcher routes events to the handlers registered for their kind.
type Dispatcher struct {
	handlers map[Kind][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind][]Handler)}
}

// On registers a handler for one event kind. Registration is not safe for
// concurrent use; bind all handlers during startup before events flow.
func (d *Dispatcher) On(kind Kind, handler Handler) {
	d.handlers[kind] = append(d.handlers[kind], handler)
}

// Dispatch delivers the event to every registered handler. A panicking
// handler is logged and contained; nothing may propagate back into the
// external client's event loop.
func (d *Dispatcher) Dispatch(evt Event) {
	for _, handler := range d.handlers[evt.Kind] {
		d.deliver(evt, handler)
	}
}

func (d *Dispatcher) deliver(evt Event, handler Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Event("dispatcher").Error(fmt.Sprintf("panic in %s handler: %v", evt.Kind, rec))
		}
	}()
	handler(evt)
}
