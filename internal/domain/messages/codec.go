package messages

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// Envelope is the wire form of a message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses an envelope into its concrete message. Unrecognized kinds
// decode to Unknown without error.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}

	switch Kind(env.Type) {
	case KindScanURL:
		var m ScanURL
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		if m.URL == "" {
			return nil, fmt.Errorf("%s: url is required", env.Type)
		}
		return m, nil
	case KindGetPageTrust:
		// payload is either a bare url string or {"url": ...}
		var url string
		if err := json.Unmarshal(env.Payload, &url); err == nil {
			return GetPageTrust{URL: url}, nil
		}
		var m GetPageTrust
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindGetScanCount:
		return GetScanCount{}, nil
	case KindBadgeFallback:
		var m BadgeFallback
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindUpdateBadge:
		// payload is either a bare verdict string or {"verdict": ...}
		var m UpdateBadge
		var v string
		if err := json.Unmarshal(env.Payload, &v); err == nil {
			m.Verdict = scans.Verdict(v)
			return m, nil
		}
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}

// Encode wraps m in an envelope.
func Encode(m Message) ([]byte, error) {
	env := Envelope{Type: string(m.Kind())}
	switch m.(type) {
	case GetScanCount, Unknown:
	default:
		p, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		env.Payload = p
	}
	return json.Marshal(env)
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("decode payload: empty")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
