package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
)

type fakeSender struct {
	textChatID  string
	textMessage string
	textCalls   int
	textErr     error

	imageChatID  string
	imageType    string
	imageCaption string
	imageBytes   []byte
	imageCalls   int

	msgID string
}

func (f *fakeSender) SendText(_ context.Context, chatID string, message string) (string, error) {
	f.textChatID = chatID
	f.textMessage = message
	f.textCalls++
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.msgID, nil
}

func (f *fakeSender) SendImage(_ context.Context, chatID string, imageBytes []byte, imageType string, imageCaption string) (string, error) {
	f.imageChatID = chatID
	f.imageBytes = imageBytes
	f.imageType = imageType
	f.imageCaption = imageCaption
	f.imageCalls++
	return f.msgID, nil
}

type fakeStore struct {
	saved    []*store.MessageRecord
	saveErr  error
	byPhone  map[string][]store.MessageRecord
	listErr  error
	lastList string
}

func (f *fakeStore) SaveSentMessage(_ context.Context, rec *store.MessageRecord) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	f.saved = append(f.saved, rec)
	return true, nil
}

func (f *fakeStore) MessagesByPhone(_ context.Context, phone string, limit int) ([]store.MessageRecord, error) {
	f.lastList = phone
	if f.listErr != nil {
		return nil, f.listErr
	}
	records := f.byPhone[phone]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func readyTracker(t *testing.T) *session.Tracker {
	t.Helper()
	tr := session.NewTracker(filepath.Join(t.TempDir(), "qr.png"))
	tr.Apply(events.Event{Kind: events.KindReady})
	return tr
}

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New()
	app.Post("/send", h.Send)
	app.Get("/sent-messages", h.ListSent)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("response is not a JSON object: %s", raw)
		}
	}
	return resp, decoded
}

func TestSendRejectedWhenClientNotReady(t *testing.T) {
	sender := &fakeSender{msgID: "MSG1"}
	st := &fakeStore{}
	tr := session.NewTracker(filepath.Join(t.TempDir(), "qr.png"))
	app := newTestApp(NewHandler(tr, sender, st))

	resp, body := postJSON(t, app, "/send", `{"phone":"5215551234567","message":"hola"}`)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if sender.textCalls != 0 || sender.imageCalls != 0 {
		t.Error("a not-ready client must never be asked to send")
	}
	if body["error"] == nil {
		t.Error("error body missing the error field")
	}
}

func TestSendValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"phone":`},
		{"missing phone", `{"message":"hola"}`},
		{"blank phone", `{"phone":"   ","message":"hola"}`},
		{"no content at all", `{"phone":"5215551234567"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{msgID: "MSG1"}
			app := newTestApp(NewHandler(readyTracker(t), sender, &fakeStore{}))

			resp, _ := postJSON(t, app, "/send", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if sender.textCalls != 0 {
				t.Error("invalid input must not reach the transport")
			}
		})
	}
}

func TestSendTextMessage(t *testing.T) {
	sender := &fakeSender{msgID: "3EB0ABCDEF"}
	st := &fakeStore{}
	app := newTestApp(NewHandler(readyTracker(t), sender, st))

	resp, body := postJSON(t, app, "/send", `{"phone":"5215551234567","message":"hola mundo"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "enviado" {
		t.Errorf(`status field = %v, want "enviado"`, body["status"])
	}
	if body["id"] != "3EB0ABCDEF" {
		t.Errorf("id field = %v, want the message id", body["id"])
	}
	if sender.textChatID != "5215551234567@c.us" {
		t.Errorf("chat id = %q, want canonical form", sender.textChatID)
	}
	if sender.textMessage != "hola mundo" {
		t.Errorf("message = %q", sender.textMessage)
	}

	if len(st.saved) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(st.saved))
	}
	rec := st.saved[0]
	if rec.MessageID != "3EB0ABCDEF" || rec.Phone != "5215551234567" || rec.ChatID != "5215551234567@c.us" {
		t.Errorf("persisted record = %+v", rec)
	}
	if rec.Ack != 1 || rec.AckText != "Enviado" {
		t.Errorf("new record ack = (%d, %q), want (1, Enviado)", rec.Ack, rec.AckText)
	}
}

func TestSendImageFromBase64(t *testing.T) {
	sender := &fakeSender{msgID: "MSGIMG"}
	app := newTestApp(NewHandler(readyTracker(t), sender, &fakeStore{}))

	payload := `{"phone":"5215551234567","message":"mira esto","imageBase64":"data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="}`
	resp, body := postJSON(t, app, "/send", payload)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "enviado" {
		t.Errorf(`status field = %v, want "enviado"`, body["status"])
	}
	if sender.imageCalls != 1 {
		t.Fatal("expected an image send")
	}
	if sender.imageType != "image/png" {
		t.Errorf("image type = %q, want image/png", sender.imageType)
	}
	if sender.imageCaption != "mira esto" {
		t.Errorf("caption = %q", sender.imageCaption)
	}
	if len(sender.imageBytes) == 0 {
		t.Error("image bytes are empty")
	}
}

func TestSendRejectsMalformedBase64(t *testing.T) {
	sender := &fakeSender{msgID: "MSG1"}
	app := newTestApp(NewHandler(readyTracker(t), sender, &fakeStore{}))

	resp, _ := postJSON(t, app, "/send", `{"phone":"5215551234567","imageBase64":"data:image/png;base64"}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if sender.imageCalls != 0 {
		t.Error("malformed payloads must not reach the transport")
	}
}

func TestSendImageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	sender := &fakeSender{msgID: "MSGURL"}
	app := newTestApp(NewHandler(readyTracker(t), sender, &fakeStore{}))

	resp, _ := postJSON(t, app, "/send", `{"phone":"5215551234567","imageUrl":"`+srv.URL+`/pic.jpg"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if sender.imageCalls != 1 {
		t.Fatal("expected an image send")
	}
	if sender.imageType != "image/jpeg" {
		t.Errorf("image type = %q, want image/jpeg", sender.imageType)
	}
}

func TestSendTransportFailure(t *testing.T) {
	sender := &fakeSender{textErr: errors.New("send timed out")}
	st := &fakeStore{}
	app := newTestApp(NewHandler(readyTracker(t), sender, st))

	resp, _ := postJSON(t, app, "/send", `{"phone":"5215551234567","message":"hola"}`)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if len(st.saved) != 0 {
		t.Error("failed sends must not be persisted")
	}
}

func TestSendSucceedsWhenPersistenceFails(t *testing.T) {
	sender := &fakeSender{msgID: "MSG1"}
	st := &fakeStore{saveErr: errors.New("connection refused")}
	app := newTestApp(NewHandler(readyTracker(t), sender, st))

	resp, body := postJSON(t, app, "/send", `{"phone":"5215551234567","message":"hola"}`)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 despite the store failure", resp.StatusCode)
	}
	if body["status"] != "enviado" {
		t.Errorf(`status field = %v, want "enviado"`, body["status"])
	}
}

func TestListSentRequiresPhone(t *testing.T) {
	app := newTestApp(NewHandler(readyTracker(t), &fakeSender{}, &fakeStore{}))

	req := httptest.NewRequest(http.MethodGet, "/sent-messages", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListSentReturnsRecords(t *testing.T) {
	ackDate := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{byPhone: map[string][]store.MessageRecord{
		"5215551234567": {
			{
				MessageID: "MSG2",
				Phone:     "5215551234567",
				ChatID:    "5215551234567@c.us",
				Content:   "segundo",
				Ack:       3,
				AckText:   "Leído",
				AckDate:   &ackDate,
				Date:      time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC),
			},
			{
				MessageID: "MSG1",
				Phone:     "5215551234567",
				ChatID:    "5215551234567@c.us",
				Content:   "primero",
				Ack:       1,
				AckText:   "Enviado",
				Date:      time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
			},
		},
	}}
	app := newTestApp(NewHandler(readyTracker(t), &fakeSender{}, st))

	req := httptest.NewRequest(http.MethodGet, "/sent-messages?phone=5215551234567", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, _ := io.ReadAll(resp.Body)
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("response is not a JSON array: %s", raw)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["messageId"] != "MSG2" || records[0]["ackText"] != "Leído" {
		t.Errorf("first record = %v", records[0])
	}
	if records[1]["chatId"] != "5215551234567@c.us" {
		t.Errorf("second record chatId = %v", records[1]["chatId"])
	}
	if !strings.Contains(string(raw), `"ack":3`) {
		t.Error("numeric ack code missing from the payload")
	}
}
