/**
 * Image Source - tagged union over the ways a receipt image can arrive
 *
 * Callers classify a source exactly once; Resolve then dispatches on the tag.
 * Classification is pure string inspection with no I/O and no trial decoding,
 * so the same input always classifies the same way.
 */

package input

import (
	"context"
	"encoding/base64"
	"os"
	"strings"

	apperrors "github.com/receiptflow/receipt-worker/internal/errors"
)

// Kind tags the shape of an image source.
type Kind string

const (
	KindRawBytes  Kind = "raw_bytes"
	KindBase64    Kind = "base64"
	KindDataURL   Kind = "data_url"
	KindFilePath  Kind = "file_path"
	KindObjectURL Kind = "object_url"
)

// Source is one classified image input. Exactly one of Bytes or Value is
// populated, depending on Kind.
type Source struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
	Bytes []byte `json:"-"`
}

// Fetcher retrieves remote object URLs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FromBytes wraps already-loaded image bytes.
func FromBytes(data []byte) Source {
	return Source{Kind: KindRawBytes, Bytes: data}
}

// Classify inspects a string source and tags it. Unrecognized strings
// classify as file paths; Resolve reports the error if no such file exists.
func Classify(value string) Source {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(trimmed, "data:"):
		return Source{Kind: KindDataURL, Value: trimmed}
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"),
		strings.HasPrefix(trimmed, "s3://"):
		return Source{Kind: KindObjectURL, Value: trimmed}
	case looksLikeBase64(trimmed):
		return Source{Kind: KindBase64, Value: trimmed}
	default:
		return Source{Kind: KindFilePath, Value: trimmed}
	}
}

// Resolve materializes the source into raw image bytes.
func (s Source) Resolve(ctx context.Context, fetcher Fetcher) ([]byte, error) {
	switch s.Kind {
	case KindRawBytes:
		if len(s.Bytes) == 0 {
			return nil, apperrors.NewInvalidSourceError("empty byte payload")
		}
		return s.Bytes, nil

	case KindBase64:
		data, err := decodeBase64(s.Value)
		if err != nil {
			return nil, apperrors.NewInvalidSourceError("malformed base64 payload")
		}
		return data, nil

	case KindDataURL:
		_, payload, found := strings.Cut(s.Value, ",")
		if !found {
			return nil, apperrors.NewInvalidSourceError("data URL has no payload")
		}
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, apperrors.NewInvalidSourceError("data URL payload is not base64")
		}
		return data, nil

	case KindFilePath:
		data, err := os.ReadFile(s.Value)
		if err != nil {
			return nil, apperrors.NewInvalidSourceError("unreadable file path: " + s.Value)
		}
		return data, nil

	case KindObjectURL:
		if strings.HasPrefix(s.Value, "s3://") {
			// Bucket-native access needs credentials the worker does not hold;
			// callers must pass a presigned HTTPS URL instead.
			return nil, apperrors.NewInvalidSourceError("s3:// URLs are not supported, use a presigned HTTPS URL")
		}
		if fetcher == nil {
			return nil, apperrors.NewInvalidSourceError("no fetcher configured for object URLs")
		}
		data, err := fetcher.Fetch(ctx, s.Value)
		if err != nil {
			return nil, err
		}
		return data, nil

	default:
		return nil, apperrors.NewInvalidSourceError("unknown source kind: " + string(s.Kind))
	}
}

// looksLikeBase64 requires a plausible minimum length and a clean alphabet.
// Short strings stay file paths so names like "receipt.png" never misclassify.
func looksLikeBase64(s string) bool {
	if len(s) < 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=', r == '\n', r == '\r':
		default:
			return false
		}
	}
	return true
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
