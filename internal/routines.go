package internal

import (
	"github.com/robfig/cron/v3"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/env"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	pkgWhatsApp "github.com/geniality/go-whatsapp-gateway-rest-api/pkg/whatsapp"
)

// Routines schedules the session health check. The tracker is event-driven;
// the cron only reconciles it when a disconnect slipped past the event
// stream (e.g. the process missed a callback while the socket died).
func Routines(c *cron.Cron, wa *pkgWhatsApp.Client, sessions *session.Tracker, dispatcher *events.Dispatcher) {
	log.Print(nil).Info("Running Routine Tasks")

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_HEALTH_CHECK_CRON", true) {
		_, err := c.AddFunc("0 */5 * * * *", func() {
			healthy := wa.IsConnected() && wa.IsLoggedIn()
			current := sessions.Current()

			if current.IsReady && !healthy {
				log.Print(nil).Warn("Client unhealthy while status reports ready; reconciling")
				dispatcher.Dispatch(events.Event{
					Kind:   events.KindDisconnected,
					Reason: "health check: client connection lost",
				})
				return
			}

			log.Print(nil).
				WithField("state", string(current.State)).
				WithField("healthy", healthy).
				Info("Session health check")
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on client event stream")
	}

	c.Start()
}
