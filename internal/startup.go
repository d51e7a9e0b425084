package internal

import (
	"context"

	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	pkgWhatsApp "github.com/geniality/go-whatsapp-gateway-rest-api/pkg/whatsapp"
)

// Startup connects the WhatsApp client. A stored device resumes its session;
// an unpaired device starts a QR pairing cycle surfaced through /status and
// /qr.png. Connection failure is logged, not fatal: the status tracker
// reports the degraded state and the client retries on its own.
func Startup(wa *pkgWhatsApp.Client) {
	log.Print(nil).Info("Running Startup Tasks")

	if err := wa.Connect(context.Background()); err != nil {
		log.Print(nil).WithError(err).Error("Failed to connect WhatsApp client")
	}
}
