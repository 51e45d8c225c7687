package capture

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Encoding is the text encoding of frames in a capture file
type Encoding string

const (
	EncodingAuto   Encoding = "auto"
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

// Longest line accepted; beacons are far shorter
const maxLineSize = 64 * 1024

// ParseEncoding validates an encoding name
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case EncodingAuto, EncodingBase64, EncodingHex:
		return e, nil
	case "":
		return EncodingAuto, nil
	default:
		return "", fmt.Errorf("unknown frame encoding %q (want auto, base64 or hex)", s)
	}
}

// Frame is one raw frame read from a capture
type Frame struct {
	Line int
	Data []byte
}

// LineError reports a line that could not be decoded
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader reads text-encoded frames, one per line. Blank lines and lines
// starting with '#' are skipped.
type Reader struct {
	scanner  *bufio.Scanner
	encoding Encoding
	line     int
}

// NewReader creates a new capture reader
func NewReader(r io.Reader, encoding Encoding) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	return &Reader{
		scanner:  scanner,
		encoding: encoding,
	}
}

// Next returns the next frame. It returns io.EOF when the input is exhausted
// and a *LineError for a line that does not decode; reading may continue
// after a LineError.
func (r *Reader) Next() (Frame, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		data, err := DecodeFrame(text, r.encoding)
		if err != nil {
			return Frame{}, &LineError{Line: r.line, Err: err}
		}

		return Frame{Line: r.line, Data: data}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("failed to read capture: %w", err)
	}

	return Frame{}, io.EOF
}

// DecodeFrame decodes a single text-encoded frame
func DecodeFrame(text string, encoding Encoding) ([]byte, error) {
	text = strings.TrimSpace(text)

	switch encoding {
	case EncodingHex:
		return decodeHex(text)
	case EncodingBase64:
		return decodeBase64(text)
	case EncodingAuto, "":
		if looksHex(text) {
			return decodeHex(text)
		}
		return decodeBase64(text)
	default:
		return nil, fmt.Errorf("unknown frame encoding %q", encoding)
	}
}

func decodeHex(text string) ([]byte, error) {
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	text = strings.ReplaceAll(text, " ", "")

	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return data, nil
}

func decodeBase64(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 frame: %w", err)
	}
	return data, nil
}

// looksHex reports whether text is an even-length run of hex digits
func looksHex(text string) bool {
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text) == 0 || len(text)%2 != 0 {
		return false
	}
	for _, c := range text {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
