package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sunshineplan/imgconv"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	gateway "github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/env"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
)

// IndividualChatSuffix is the canonical suffix for individual chat
// identifiers as stored and exposed by the API.
const IndividualChatSuffix = "@c.us"

const logoutRequestTimeout = 30 * time.Second

// Config carries the transport configuration resolved from the environment.
type Config struct {
	DatastoreDriver string
	DatastoreDSN    string
	ProxyURL        string
	QRImagePath     string
}

// Client wraps a single whatsmeow session and translates its callbacks into
// gateway events on the dispatcher.
type Client struct {
	wm          *whatsmeow.Client
	datastore   *sqlstore.Container
	dispatcher  *gateway.Dispatcher
	qrImagePath string
}

// NewClient initializes the session datastore, restores the stored device
// (or creates a fresh one when unpaired) and wires the event bridge.
func NewClient(ctx context.Context, cfg Config, dispatcher *gateway.Dispatcher) (*Client, error) {
	datastore, err := sqlstore.New(ctx, cfg.DatastoreDriver, cfg.DatastoreDSN, nil)
	if err != nil {
		return nil, err
	}

	device, err := datastore.GetFirstDevice(ctx)
	if err != nil {
		return nil, err
	}

	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	wm := whatsmeow.NewClient(device, nil)

	if len(cfg.ProxyURL) > 0 {
		wm.SetProxyAddress(cfg.ProxyURL)
	}

	wm.EnableAutoReconnect = true
	wm.AutoTrustIdentity = true

	client := &Client{
		wm:          wm,
		datastore:   datastore,
		dispatcher:  dispatcher,
		qrImagePath: cfg.QRImagePath,
	}
	wm.AddEventHandler(client.handleEvents)

	return client, nil
}

// Connect starts the session. When the device is unpaired, the QR channel is
// consumed in the background and each pairing code surfaces as a qr event.
func (c *Client) Connect(ctx context.Context) error {
	if c.wm.Store.ID == nil {
		qrChan, err := c.wm.GetQRChannel(ctx)
		if err != nil {
			return err
		}
		if err := c.wm.Connect(); err != nil {
			return err
		}
		go c.consumeQRChannel(qrChan)
		return nil
	}

	return c.wm.Connect()
}

func (c *Client) Disconnect() {
	c.wm.Disconnect()
}

func (c *Client) IsConnected() bool {
	return c.wm.IsConnected()
}

func (c *Client) IsLoggedIn() bool {
	return c.wm.IsLoggedIn()
}

// Logout revokes the session with the messaging network, deletes the stored
// device credentials and removes the QR image of the last pairing cycle.
func (c *Client) Logout(ctx context.Context) error {
	if c.wm.Store.ID == nil {
		return errors.New("WhatsApp client is not paired")
	}

	logoutCtx, logoutCancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer logoutCancel()

	if err := c.wm.Logout(logoutCtx); err != nil {
		// Revocation failed; drop the local credentials so the next start
		// begins a fresh pairing cycle anyway.
		c.wm.Disconnect()
		if err := c.wm.Store.Delete(ctx); err != nil {
			return err
		}
	}

	if c.qrImagePath != "" {
		if err := os.Remove(c.qrImagePath); err != nil && !os.IsNotExist(err) {
			log.Event("whatsapp").WithError(err).Warn("Failed to remove " + c.qrImagePath)
		}
	}

	c.dispatcher.Dispatch(gateway.Event{Kind: gateway.KindDisconnected, Reason: "logged out by request"})
	return nil
}

func (c *Client) isClientOK() error {
	if !c.wm.IsConnected() {
		return errors.New("WhatsApp client is not connected")
	}
	if !c.wm.IsLoggedIn() {
		return errors.New("WhatsApp client is not logged in")
	}
	return nil
}

// SendText sends a plain text message and returns the generated message id.
func (c *Client) SendText(ctx context.Context, chatID string, message string) (string, error) {
	if err := c.isClientOK(); err != nil {
		return "", err
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wm.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(message),
	}

	if _, err := c.wm.SendMessage(ctx, composeJID(chatID), msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// SendImage uploads and sends an image with an optional caption, returning
// the generated message id. WebP conversion and compression follow the
// WHATSAPP_MEDIA_* environment switches.
func (c *Client) SendImage(ctx context.Context, chatID string, imageBytes []byte, imageType string, imageCaption string) (string, error) {
	if err := c.isClientOK(); err != nil {
		return "", err
	}

	if imageType == "image/webp" && env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_CONVERT_WEBP", false) {
		imgConvDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return "", errors.New("Error While Decoding Convert Image Stream")
		}
		imgConvEncode := new(bytes.Buffer)
		err = imgconv.Write(imgConvEncode, imgConvDecode, &imgconv.FormatOption{Format: imgconv.PNG})
		if err != nil {
			return "", errors.New("Error While Encoding Convert Image Stream")
		}
		imageBytes = imgConvEncode.Bytes()
		imageType = "image/png"
	}

	if env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_COMPRESSION", false) {
		imgResizeDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return "", errors.New("Error While Decoding Resize Image Stream")
		}
		imgResizeEncode := new(bytes.Buffer)
		err = imgconv.Write(imgResizeEncode,
			imgconv.Resize(imgResizeDecode, &imgconv.ResizeOption{Width: 1024}),
			&imgconv.FormatOption{})
		if err != nil {
			return "", errors.New("Error While Encoding Resize Image Stream")
		}
		imageBytes = imgResizeEncode.Bytes()
	}

	imgThumbDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", errors.New("Error While Decoding Thumbnail Image Stream")
	}
	imgThumbEncode := new(bytes.Buffer)
	err = imgconv.Write(imgThumbEncode,
		imgconv.Resize(imgThumbDecode, &imgconv.ResizeOption{Width: 72}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return "", errors.New("Error While Encoding Thumbnail Image Stream")
	}

	imageUploaded, err := c.wm.Upload(ctx, imageBytes, whatsmeow.MediaImage)
	if err != nil {
		return "", errors.New("Error While Uploading Media to WhatsApp Server")
	}
	imageThumbUploaded, err := c.wm.Upload(ctx, imgThumbEncode.Bytes(), whatsmeow.MediaLinkThumbnail)
	if err != nil {
		return "", errors.New("Error While Uploading Image Thumbnail to WhatsApp Server")
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wm.GenerateMessageID()}
	msgContent := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:                 proto.String(imageUploaded.URL),
			DirectPath:          proto.String(imageUploaded.DirectPath),
			Mimetype:            proto.String(imageType),
			Caption:             proto.String(imageCaption),
			FileLength:          proto.Uint64(imageUploaded.FileLength),
			FileSHA256:          imageUploaded.FileSHA256,
			FileEncSHA256:       imageUploaded.FileEncSHA256,
			MediaKey:            imageUploaded.MediaKey,
			JPEGThumbnail:       imgThumbEncode.Bytes(),
			ThumbnailDirectPath: &imageThumbUploaded.DirectPath,
			ThumbnailSHA256:     imageThumbUploaded.FileSHA256,
			ThumbnailEncSHA256:  imageThumbUploaded.FileEncSHA256,
		},
	}

	if _, err := c.wm.SendMessage(ctx, composeJID(chatID), msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// ComposeChatID appends the individual-chat suffix to a phone number. The
// number is passed through as supplied; no E.164 normalization is performed.
func ComposeChatID(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.ContainsRune(phone, '@') {
		return phone
	}
	return phone + IndividualChatSuffix
}

// CanonicalChatID renders a transport JID in the identifier format stored by
// the gateway. Non-individual chats keep their native form.
func CanonicalChatID(jid types.JID) string {
	if jid.Server == types.DefaultUserServer {
		return jid.User + IndividualChatSuffix
	}
	return jid.String()
}

func composeJID(chatID string) types.JID {
	user := chatID
	if i := strings.IndexRune(chatID, '@'); i >= 0 {
		user = chatID[:i]
	}
	user = strings.TrimPrefix(strings.TrimSpace(user), "+")
	return types.NewJID(user, types.DefaultUserServer)
}
