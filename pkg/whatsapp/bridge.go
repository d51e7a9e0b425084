package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	gateway "github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
)

// handleEvents translates whatsmeow callbacks into gateway events. All
// domain reactions (status tracking, consent, ledger) live behind the
// dispatcher; this bridge only maps shapes.
func (c *Client) handleEvents(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindAuthenticated})
	case *events.Connected:
		c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindReady})
	case *events.Disconnected:
		c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindDisconnected, Reason: "connection closed"})
	case *events.LoggedOut:
		c.dispatcher.Dispatch(gateway.Event{
			Kind:   gateway.KindDisconnected,
			Reason: fmt.Sprintf("logged out (%s)", evt.Reason),
		})
	case *events.StreamReplaced:
		c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindDisconnected, Reason: "stream replaced by another client"})
	case *events.ConnectFailure:
		c.dispatcher.Dispatch(gateway.Event{
			Kind:   gateway.KindAuthFailure,
			Reason: fmt.Sprintf("connect failure: %s (%s)", evt.Reason, evt.Message),
		})
	case *events.TemporaryBan:
		c.dispatcher.Dispatch(gateway.Event{
			Kind:   gateway.KindAuthFailure,
			Reason: fmt.Sprintf("temporarily banned: %s, expires %s", evt.Code, evt.Expire),
		})
	case *events.Message:
		c.bridgeMessage(evt)
	case *events.Receipt:
		c.bridgeReceipt(evt)
	}
}

// consumeQRChannel forwards pairing codes from the QR channel until it
// closes. Pairing success is the authenticated signal; the subsequent
// Connected event reports ready.
func (c *Client) consumeQRChannel(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindQR, QRCode: evt.Code})
		case whatsmeow.QRChannelSuccess.Event:
			c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindAuthenticated})
		case whatsmeow.QRChannelTimeout.Event:
			c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindAuthFailure, Reason: "qr pairing timed out"})
		case "error":
			reason := "qr channel reported an unspecified error"
			if evt.Error != nil {
				reason = evt.Error.Error()
			}
			c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindAuthFailure, Reason: reason})
		default:
			c.dispatcher.Dispatch(gateway.Event{
				Kind:   gateway.KindAuthFailure,
				Reason: "qr pairing failed: " + evt.Event,
			})
		}
	}
}

func (c *Client) bridgeMessage(evt *events.Message) {
	msg := &gateway.MessageEvent{
		MessageID:  evt.Info.ID,
		ChatID:     CanonicalChatID(evt.Info.Chat),
		Phone:      evt.Info.Chat.User,
		Body:       extractBody(evt.Message),
		FromMe:     evt.Info.IsFromMe,
		Individual: evt.Info.Chat.Server == types.DefaultUserServer,
		Timestamp:  evt.Info.Timestamp,
	}

	kind := gateway.KindMessage
	if msg.FromMe {
		kind = gateway.KindMessageCreate
	}
	c.dispatcher.Dispatch(gateway.Event{Kind: kind, Message: msg})
}

func (c *Client) bridgeReceipt(evt *events.Receipt) {
	var ack int
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		ack = 2
	case events.ReceiptTypeRead, events.ReceiptTypeReadSelf:
		ack = 3
	default:
		return
	}

	for _, msgID := range evt.MessageIDs {
		c.dispatcher.Dispatch(gateway.Event{
			Kind: gateway.KindMessageAck,
			Ack: &gateway.AckEvent{
				MessageID: msgID,
				Ack:       ack,
				Timestamp: evt.Timestamp,
			},
		})
	}
}

func extractBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	return ""
}
