package session

import (
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	qrCode "github.com/skip2/go-qrcode"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
)

type State string

const (
	StateInitializing   State = "initializing"
	StateAwaitingQR     State = "awaiting_qr"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
	StateDisconnected   State = "disconnected"
	StateError          State = "error"
)

const qrImageSize = 256

// Status is a read-only snapshot of the session. IsReady holds iff the most
// recent lifecycle event was ready.
type Status struct {
	State     State
	IsReady   bool
	QRDataURL string
}

// Tracker folds lifecycle events into the current session status and caches
// the QR artifact of the active pairing cycle.
type Tracker struct {
	mu          sync.RWMutex
	status      Status
	qrImagePath string
}

func NewTracker(qrImagePath string) *Tracker {
	return &Tracker{
		status:      Status{State: StateInitializing},
		qrImagePath: qrImagePath,
	}
}

// Bind registers the tracker on every lifecycle event kind.
func (t *Tracker) Bind(d *events.Dispatcher) {
	for _, kind := range []events.Kind{
		events.KindQR,
		events.KindAuthenticated,
		events.KindReady,
		events.KindDisconnected,
		events.KindAuthFailure,
	} {
		d.On(kind, t.Apply)
	}
}

func (t *Tracker) Current() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tracker) QRImagePath() string {
	return t.qrImagePath
}

// Apply folds one lifecycle event into the status. Events overwrite the
// previous state unconditionally; the external client owns transition order.
func (t *Tracker) Apply(evt events.Event) {
	switch evt.Kind {
	case events.KindQR:
		t.set(StateAwaitingQR, t.renderQR(evt.QRCode))
	case events.KindAuthenticated:
		t.set(StateAuthenticating, "")
	case events.KindReady:
		t.set(StateReady, "")
	case events.KindDisconnected:
		log.Event("session").Warn("Client disconnected: " + evt.Reason)
		t.set(StateDisconnected, "")
	case events.KindAuthFailure:
		log.Event("session").Error("Authentication failure: " + evt.Reason)
		t.set(StateError, "")
	}
}

func (t *Tracker) set(state State, qrDataURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		State:     state,
		IsReady:   state == StateReady,
		QRDataURL: qrDataURL,
	}
}

// renderQR encodes the pairing code three ways: a scannable block printed to
// the terminal, a PNG at the well-known path, and a data URL for /status.
// Encoding failures degrade to an empty data URL, never an error.
func (t *Tracker) renderQR(code string) string {
	qrc, err := qrCode.New(code, qrCode.Medium)
	if err != nil {
		log.Event("session").WithError(err).Error("Failed to encode QR pairing code")
		return ""
	}

	// Terminal output stays unstructured so the code remains scannable.
	fmt.Println(qrc.ToSmallString(false))

	qrPNG, err := qrc.PNG(qrImageSize)
	if err != nil {
		log.Event("session").WithError(err).Error("Failed to render QR image")
		return ""
	}

	if err := os.WriteFile(t.qrImagePath, qrPNG, 0o644); err != nil {
		log.Event("session").WithError(err).Error("Failed to write " + t.qrImagePath)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG)
}
