package input

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	longBase64 := strings.Repeat("aGVsbG8x", 10)

	tests := []struct {
		name  string
		value string
		want  Kind
	}{
		{"data url", "data:image/png;base64,iVBORw0KGgo=", KindDataURL},
		{"http url", "http://example.com/receipt.jpg", KindObjectURL},
		{"https url", "https://example.com/receipt.jpg", KindObjectURL},
		{"s3 url classifies as object", "s3://bucket/key.png", KindObjectURL},
		{"long base64 blob", longBase64, KindBase64},
		{"short filename stays a path", "receipt.png", KindFilePath},
		{"relative path", "./uploads/receipt.png", KindFilePath},
		{"whitespace trimmed", "  https://example.com/r.png  ", KindObjectURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value).Kind)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	value := strings.Repeat("QUJDRA==", 16)
	first := Classify(value)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(value))
	}
}

func TestResolveRawBytes(t *testing.T) {
	data, err := FromBytes([]byte{0x89, 0x50}).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50}, data)

	_, err = FromBytes(nil).Resolve(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveBase64(t *testing.T) {
	payload := []byte("fake image bytes padded out to something plausible........")
	encoded := base64.StdEncoding.EncodeToString(payload)

	src := Classify(encoded)
	require.Equal(t, KindBase64, src.Kind)

	data, err := src.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestResolveDataURL(t *testing.T) {
	payload := []byte("fake png")
	value := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, err := Classify(value).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestResolveDataURLWithoutPayload(t *testing.T) {
	_, err := Classify("data:image/png;base64").Resolve(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.bin")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o644))

	data, err := Classify(path).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), data)

	_, err = Classify(filepath.Join(dir, "missing.bin")).Resolve(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveRejectsS3(t *testing.T) {
	_, err := Classify("s3://bucket/key.png").Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presigned")
}

func TestResolveObjectURLNeedsFetcher(t *testing.T) {
	_, err := Classify("https://example.com/r.png").Resolve(context.Background(), nil)
	assert.Error(t, err)
}
