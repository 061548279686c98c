package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressBrotli compresses data for cache storage. Payloads under 500
// bytes are stored as-is; callers distinguish the two forms by the marker
// byte prepended here.
func CompressBrotli(data []byte) ([]byte, error) {
	if len(data) < 500 {
		return append([]byte{0}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(1)
	writer := brotli.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressBrotli reverses CompressBrotli.
func DecompressBrotli(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	marker, payload := data[0], data[1:]
	if marker == 0 {
		return payload, nil
	}

	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to read from brotli reader: %w", err)
	}
	return out, nil
}
