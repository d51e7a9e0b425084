package ledger

import (
	"context"
	"time"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
)

// Delivery acknowledgement codes as reported by the messaging network.
const (
	AckError     = -1
	AckPending   = 0
	AckSent      = 1
	AckDelivered = 2
	AckRead      = 3
)

// AckText returns the human label for an acknowledgement code.
func AckText(code int) string {
	switch code {
	case AckError:
		return "Error"
	case AckPending:
		return "Pendiente"
	case AckSent:
		return "Enviado"
	case AckDelivered:
		return "Entregado"
	case AckRead:
		return "Leído"
	default:
		return "Desconocido"
	}
}

// Store is the message persistence surface used by the ledger.
type Store interface {
	SaveSentMessage(ctx context.Context, rec *store.MessageRecord) (bool, error)
	UpdateMessageAck(ctx context.Context, messageID string, ack int, ackText string, ackDate time.Time) error
}

// Ledger records every outbound message observed on the event stream and
// keeps its acknowledgement state current. It runs decoupled from the HTTP
// path so messages sent outside this process (or whose HTTP response was
// lost) are still captured.
type Ledger struct {
	store Store
}

func New(st Store) *Ledger {
	return &Ledger{store: st}
}

// Bind registers the observation hooks.
func (l *Ledger) Bind(d *events.Dispatcher) {
	d.On(events.KindMessageCreate, l.HandleOutbound)
	d.On(events.KindMessageAck, l.HandleAck)
}

// HandleOutbound records a self-originated message once. Duplicate events
// for the same message id never create a second record.
func (l *Ledger) HandleOutbound(evt events.Event) {
	msg := evt.Message
	if msg == nil || msg.MessageID == "" {
		return
	}

	date := msg.Timestamp
	if date.IsZero() {
		date = time.Now()
	}

	inserted, err := l.store.SaveSentMessage(context.Background(), &store.MessageRecord{
		MessageID: msg.MessageID,
		Phone:     msg.Phone,
		ChatID:    msg.ChatID,
		Content:   msg.Body,
		Ack:       AckSent,
		AckText:   AckText(AckSent),
		Date:      date,
	})
	if err != nil {
		log.Event("ledger").WithError(err).Error("Failed to record outbound message " + msg.MessageID)
		return
	}
	if inserted {
		log.Event("ledger").WithField("message_id", msg.MessageID).Info("Outbound message recorded")
	}
}

// HandleAck updates the acknowledgement fields of the matching record. A
// missing record is a no-op.
func (l *Ledger) HandleAck(evt events.Event) {
	ack := evt.Ack
	if ack == nil || ack.MessageID == "" {
		return
	}

	at := ack.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	err := l.store.UpdateMessageAck(context.Background(), ack.MessageID, ack.Ack, AckText(ack.Ack), at)
	if err != nil {
		log.Event("ledger").WithError(err).Error("Failed to update ack for message " + ack.MessageID)
	}
}
