package domain

import (
	"encoding/json"
	"strings"
)

// InboundKind tells how a text frame was understood.
type InboundKind int

const (
	// Structured frames are JSON values; only a string "content" field is meaningful.
	Structured InboundKind = iota
	// Raw frames are not JSON at all and are taken verbatim.
	Raw
)

func (k InboundKind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Raw:
		return "raw"
	default:
		return "unknown"
	}
}

// Inbound is the parse result of one client text frame.
type Inbound struct {
	Kind    InboundKind
	Content string
}

// ParseInbound resolves a text frame with a single fallback rule:
// anything that is valid JSON is structured, anything else is raw text.
// A JSON value without a string "content" field yields empty content.
func ParseInbound(frame []byte) Inbound {
	var value any
	if err := json.Unmarshal(frame, &value); err != nil {
		return Inbound{Kind: Raw, Content: string(frame)}
	}
	in := Inbound{Kind: Structured}
	if object, ok := value.(map[string]any); ok {
		if content, ok := object["content"].(string); ok {
			in.Content = content
		}
	}
	return in
}

// Postable reports whether the content is worth persisting and broadcasting.
func (i Inbound) Postable() bool {
	return strings.TrimSpace(i.Content) != ""
}
