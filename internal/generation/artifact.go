package generation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ArtifactKind tags the shape a provider handed its result back in.
type ArtifactKind int

const (
	ArtifactInline ArtifactKind = iota + 1
	ArtifactRemote
	ArtifactStream
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactInline:
		return "inline"
	case ArtifactRemote:
		return "remote"
	case ArtifactStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Artifact is a normalized provider result. URL holds the data URL for inline
// artifacts and the http(s) URL for remote ones. Stream is set only for stream
// artifacts and is read once.
type Artifact struct {
	Kind        ArtifactKind
	URL         string
	Stream      io.Reader
	ContentType string
}

func InlineArtifact(dataURL string) Artifact {
	mime, _, _ := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ";")
	return Artifact{Kind: ArtifactInline, URL: dataURL, ContentType: mime}
}

func RemoteArtifact(url string) Artifact {
	return Artifact{Kind: ArtifactRemote, URL: url}
}

func StreamArtifact(r io.Reader, contentType string) Artifact {
	return Artifact{Kind: ArtifactStream, Stream: r, ContentType: contentType}
}

// IsDataURL reports whether s is a base64 data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// DataURL builds a base64 data URL from an already encoded payload.
func DataURL(mime, b64 string) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + b64
}

// ParseDataURL splits a base64 data URL into its MIME type and decoded bytes.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data url has no payload")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("data url encoding %q is not supported", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, data, nil
}
