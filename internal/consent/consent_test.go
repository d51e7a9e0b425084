package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		body string
		want Decision
	}{
		{"1", DecisionAccepted},
		{"si", DecisionAccepted},
		{"Sí", DecisionAccepted},
		{"SÍ", DecisionAccepted},
		{"s", DecisionAccepted},
		{"  1  ", DecisionAccepted},
		{"2", DecisionOptedOut},
		{"no", DecisionOptedOut},
		{"NO", DecisionOptedOut},
		{"n", DecisionOptedOut},
		{"maybe", DecisionNone},
		{"12", DecisionNone},
		{"sí por favor", DecisionNone},
		{"", DecisionNone},
	}

	for _, tc := range tests {
		if got := Classify(tc.body); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestReplyFor(t *testing.T) {
	if ReplyFor(DecisionAccepted) != replyAccepted {
		t.Error("ReplyFor(accepted) returned wrong text")
	}
	if ReplyFor(DecisionOptedOut) != replyOptedOut {
		t.Error("ReplyFor(opted_out) returned wrong text")
	}
	if ReplyFor(DecisionNone) != replyReprompt {
		t.Error("ReplyFor(none) must re-prompt")
	}
}

type fakeConsentStore struct {
	records map[string]*store.ConsentRecord

	lookupErr error

	resolvedChatID   string
	resolvedDecision store.Consent
	resolveCalls     int

	pendingChatID string
	pendingPrompt string
	pendingCalls  int
}

func newFakeConsentStore() *fakeConsentStore {
	return &fakeConsentStore{records: make(map[string]*store.ConsentRecord)}
}

func (f *fakeConsentStore) ConsentByChatID(_ context.Context, chatID string) (*store.ConsentRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.records[chatID], nil
}

func (f *fakeConsentStore) MarkConsentPending(_ context.Context, chatID string, prompt string) error {
	f.pendingChatID = chatID
	f.pendingPrompt = prompt
	f.pendingCalls++
	return nil
}

func (f *fakeConsentStore) ResolveConsent(_ context.Context, chatID string, decision store.Consent, _ time.Time) error {
	f.resolvedChatID = chatID
	f.resolvedDecision = decision
	f.resolveCalls++
	return nil
}

type fakeTextSender struct {
	sentChatID  string
	sentMessage string
	sentCalls   int
	err         error
}

func (f *fakeTextSender) SendText(_ context.Context, chatID string, message string) (string, error) {
	f.sentChatID = chatID
	f.sentMessage = message
	f.sentCalls++
	if f.err != nil {
		return "", f.err
	}
	return "3EB0FAKE", nil
}

func inboundEvent(chatID string, body string) events.Event {
	return events.Event{
		Kind: events.KindMessage,
		Message: &events.MessageEvent{
			MessageID:  "MSG1",
			ChatID:     chatID,
			Phone:      "5215551234567",
			Body:       body,
			Individual: true,
			Timestamp:  time.Now(),
		},
	}
}

func TestWorkflowResolvesPendingConsent(t *testing.T) {
	st := newFakeConsentStore()
	st.records["5215551234567@c.us"] = &store.ConsentRecord{
		ChatID:         "5215551234567@c.us",
		PendingConsent: true,
	}
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	w.HandleInbound(inboundEvent("5215551234567@c.us", "1"))

	if sender.sentCalls != 1 {
		t.Fatalf("expected one reply, got %d", sender.sentCalls)
	}
	if sender.sentMessage != replyAccepted {
		t.Errorf("reply = %q, want confirmation text", sender.sentMessage)
	}
	if st.resolveCalls != 1 {
		t.Fatalf("expected one resolution, got %d", st.resolveCalls)
	}
	if st.resolvedDecision != store.ConsentAccepted {
		t.Errorf("decision = %q, want %q", st.resolvedDecision, store.ConsentAccepted)
	}
}

func TestWorkflowRecordsOptOut(t *testing.T) {
	st := newFakeConsentStore()
	st.records["5215551234567@c.us"] = &store.ConsentRecord{
		ChatID:         "5215551234567@c.us",
		PendingConsent: true,
	}
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	w.HandleInbound(inboundEvent("5215551234567@c.us", "No"))

	if sender.sentMessage != replyOptedOut {
		t.Errorf("reply = %q, want opt-out text", sender.sentMessage)
	}
	if st.resolvedDecision != store.ConsentOptedOut {
		t.Errorf("decision = %q, want %q", st.resolvedDecision, store.ConsentOptedOut)
	}
}

func TestWorkflowRepromptsWithoutResolving(t *testing.T) {
	st := newFakeConsentStore()
	st.records["5215551234567@c.us"] = &store.ConsentRecord{
		ChatID:         "5215551234567@c.us",
		PendingConsent: true,
	}
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	w.HandleInbound(inboundEvent("5215551234567@c.us", "quizás"))

	if sender.sentMessage != replyReprompt {
		t.Errorf("reply = %q, want re-prompt text", sender.sentMessage)
	}
	if st.resolveCalls != 0 {
		t.Error("unclassifiable reply must leave the record pending")
	}
}

func TestWorkflowIgnoresUnrelatedChats(t *testing.T) {
	st := newFakeConsentStore()
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	// No consent record at all.
	w.HandleInbound(inboundEvent("5215550000000@c.us", "1"))

	// Record exists but is not pending.
	st.records["5215551111111@c.us"] = &store.ConsentRecord{
		ChatID:  "5215551111111@c.us",
		Consent: store.ConsentAccepted,
	}
	w.HandleInbound(inboundEvent("5215551111111@c.us", "1"))

	if sender.sentCalls != 0 || st.resolveCalls != 0 {
		t.Error("messages outside a pending consent exchange must be ignored")
	}
}

func TestWorkflowIgnoresGroupAndOwnMessages(t *testing.T) {
	st := newFakeConsentStore()
	st.records["5215551234567@c.us"] = &store.ConsentRecord{
		ChatID:         "5215551234567@c.us",
		PendingConsent: true,
	}
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	group := inboundEvent("5215551234567@c.us", "1")
	group.Message.Individual = false
	w.HandleInbound(group)

	own := inboundEvent("5215551234567@c.us", "1")
	own.Message.FromMe = true
	w.HandleInbound(own)

	w.HandleInbound(events.Event{Kind: events.KindMessage})

	if sender.sentCalls != 0 {
		t.Error("group, self and empty events must not trigger consent replies")
	}
}

func TestWorkflowSwallowsStoreFailures(t *testing.T) {
	st := newFakeConsentStore()
	st.lookupErr = errors.New("connection refused")
	sender := &fakeTextSender{}
	w := NewWorkflow(st, sender)

	// Must not panic and must not reply.
	w.HandleInbound(inboundEvent("5215551234567@c.us", "1"))

	if sender.sentCalls != 0 {
		t.Error("lookup failure must not produce a reply")
	}
}
