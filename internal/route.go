package internal

import (
	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"

	ctlConsent "github.com/geniality/go-whatsapp-gateway-rest-api/internal/consent"
	ctlDevice "github.com/geniality/go-whatsapp-gateway-rest-api/internal/device"
	ctlIndex "github.com/geniality/go-whatsapp-gateway-rest-api/internal/index"
	ctlMessage "github.com/geniality/go-whatsapp-gateway-rest-api/internal/message"
	ctlStatus "github.com/geniality/go-whatsapp-gateway-rest-api/internal/status"
)

// Controllers bundles the HTTP handlers with their injected dependencies.
type Controllers struct {
	Message *ctlMessage.Handler
	Consent *ctlConsent.Handler
	Status  *ctlStatus.Handler
	Device  *ctlDevice.Handler
}

func Routes(app *fiber.App, ctl *Controllers) {
	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// Messaging
	app.Post(router.BaseURL+"/send", ctl.Message.Send)
	app.Get(router.BaseURL+"/sent-messages", ctl.Message.ListSent)

	// Consent
	app.Post(router.BaseURL+"/send-consent", ctl.Consent.SendConsent)

	// Session
	app.Get(router.BaseURL+"/status", ctl.Status.GetStatus)
	app.Get(router.BaseURL+"/qr.png", ctl.Status.GetQRImage)
	app.Post(router.BaseURL+"/logout", ctl.Device.Logout)
}
