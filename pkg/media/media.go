package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DefaultImageType is assumed whenever the source carries no usable type
// information (bare base64 payloads, typeless URL responses).
const DefaultImageType = "image/jpeg"

var (
	ErrInvalidDataURL = errors.New("imageBase64 envelope must match data:<type>;base64,<payload>")
	ErrInvalidBase64  = errors.New("imageBase64 is not valid base64 data")
)

var dataURLPattern = regexp.MustCompile(`^data:([a-zA-Z0-9][a-zA-Z0-9!#$&^_.+-]*/[a-zA-Z0-9][a-zA-Z0-9!#$&^_.+-]*);base64,([A-Za-z0-9+/]+={0,2})$`)

// Attachment is a resolved media payload ready to hand to the transport.
type Attachment struct {
	Bytes    []byte
	MimeType string
	Filename string
}

// FromBase64 resolves an attachment from a base64 source, accepting either a
// bare payload (assumed DefaultImageType) or a full data URL envelope. The
// envelope is validated strictly; a payload that starts with "data:" but does
// not match the pattern is rejected rather than decoded on a best-effort
// basis.
func FromBase64(payload string) (*Attachment, error) {
	payload = strings.TrimSpace(payload)
	mimeType := DefaultImageType
	data := payload

	if strings.HasPrefix(payload, "data:") {
		match := dataURLPattern.FindStringSubmatch(payload)
		if match == nil {
			return nil, ErrInvalidDataURL
		}
		mimeType = match[1]
		data = match[2]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidBase64
	}

	return &Attachment{
		Bytes:    raw,
		MimeType: mimeType,
		Filename: FilenameForType(mimeType),
	}, nil
}

// FetchURL downloads an attachment and infers its content type from the
// response header, falling back to the URL extension, then DefaultImageType.
func FetchURL(ctx context.Context, rawURL string) (*Attachment, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetching imageUrl returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	mimeType := typeFromHeader(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = TypeFromExtension(rawURL)
	}
	if mimeType == "" {
		mimeType = DefaultImageType
	}

	return &Attachment{
		Bytes:    raw,
		MimeType: mimeType,
		Filename: FilenameForType(mimeType),
	}, nil
}

// TypeFromExtension infers a MIME type from the extension of a URL path.
// Returns empty when nothing can be inferred.
func TypeFromExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		return ""
	}
	byExt := mime.TypeByExtension(ext)
	if byExt == "" {
		return ""
	}
	mimeType, _, err := mime.ParseMediaType(byExt)
	if err != nil {
		return ""
	}
	return mimeType
}

// FilenameForType synthesizes a filename from the MIME subtype, e.g.
// image/jpeg -> image.jpeg.
func FilenameForType(mimeType string) string {
	subtype := mimeType
	if i := strings.Index(mimeType, "/"); i >= 0 {
		subtype = mimeType[i+1:]
	}
	if subtype == "" {
		subtype = "bin"
	}
	return "image." + subtype
}

func typeFromHeader(header string) string {
	if header == "" {
		return ""
	}
	mimeType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mimeType
}
