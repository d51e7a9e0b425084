package consent

import (
	"context"
	"strings"
	"time"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
)

// Decision is the outcome of classifying a consent reply.
type Decision string

const (
	DecisionNone     Decision = "none"
	DecisionAccepted Decision = "accepted"
	DecisionOptedOut Decision = "opted_out"
)

// DefaultPrompt is sent when the consent request carries no custom text.
const DefaultPrompt = "¿Desea recibir mensajes por WhatsApp? Responda 1 (Sí) o 2 (No).\n" +
	"Would you like to receive messages via WhatsApp? Reply 1 (Yes) or 2 (No)."

const (
	replyAccepted = "Gracias, su suscripción ha sido confirmada.\n" +
		"Thank you, your subscription has been confirmed."
	replyOptedOut = "Entendido, no recibirá más mensajes.\n" +
		"Understood, you will not receive further messages."
	replyReprompt = "Respuesta no válida. Responda 1 (Sí) o 2 (No).\n" +
		"Invalid response. Reply 1 (Yes) or 2 (No)."
)

// Classify maps a reply body to a consent decision. The classification is a
// pure function of the trimmed, case-folded body.
func Classify(body string) Decision {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "1", "si", "sí", "s":
		return DecisionAccepted
	case "2", "no", "n":
		return DecisionOptedOut
	default:
		return DecisionNone
	}
}

// ReplyFor returns the acknowledgement text sent back for a decision.
func ReplyFor(decision Decision) string {
	switch decision {
	case DecisionAccepted:
		return replyAccepted
	case DecisionOptedOut:
		return replyOptedOut
	default:
		return replyReprompt
	}
}

// Sender sends a text message to a chat. Satisfied by pkg/whatsapp.Client.
type Sender interface {
	SendText(ctx context.Context, chatID string, message string) (string, error)
}

// Store is the consent persistence surface used by the workflow.
type Store interface {
	ConsentByChatID(ctx context.Context, chatID string) (*store.ConsentRecord, error)
	MarkConsentPending(ctx context.Context, chatID string, prompt string) error
	ResolveConsent(ctx context.Context, chatID string, decision store.Consent, at time.Time) error
}

// Workflow resolves pending consent records from inbound replies.
type Workflow struct {
	store  Store
	sender Sender
}

func NewWorkflow(st Store, sender Sender) *Workflow {
	return &Workflow{store: st, sender: sender}
}

// Bind registers the workflow on inbound message events.
func (w *Workflow) Bind(d *events.Dispatcher) {
	d.On(events.KindMessage, w.HandleInbound)
}

// HandleInbound processes one inbound message. Only individual chats with a
// pending consent record are consent replies; everything else is ignored.
// Failures are logged and swallowed so the event stream keeps flowing.
func (w *Workflow) HandleInbound(evt events.Event) {
	msg := evt.Message
	if msg == nil || msg.FromMe || !msg.Individual {
		return
	}

	ctx := context.Background()

	rec, err := w.store.ConsentByChatID(ctx, msg.ChatID)
	if err != nil {
		log.Event("consent").WithError(err).Error("Failed to look up consent record for " + msg.ChatID)
		return
	}
	if rec == nil || !rec.PendingConsent {
		return
	}

	decision := Classify(msg.Body)

	if _, err := w.sender.SendText(ctx, msg.ChatID, ReplyFor(decision)); err != nil {
		log.Event("consent").WithError(err).Error("Failed to send consent reply to " + msg.ChatID)
	}

	if decision == DecisionNone {
		return
	}

	if err := w.store.ResolveConsent(ctx, msg.ChatID, storeConsent(decision), time.Now()); err != nil {
		log.Event("consent").WithError(err).Error("Failed to persist consent decision for " + msg.ChatID)
		return
	}

	log.Event("consent").
		WithField("chat_id", msg.ChatID).
		WithField("decision", string(decision)).
		Info("Consent decision recorded")
}

func storeConsent(decision Decision) store.Consent {
	if decision == DecisionOptedOut {
		return store.ConsentOptedOut
	}
	return store.ConsentAccepted
}
