package domain

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// MaxExcerptLength bounds the payload excerpt carried by an alert.
const MaxExcerptLength = 256

type Alert struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	SourceIP     string            `json:"source_ip"`
	ThreatType   ThreatType        `json:"threat_type"`
	Action       Action            `json:"action"`
	Level        AlertLevel        `json:"level"`
	DeclaredSize int               `json:"declared_size"`
	Excerpt      string            `json:"excerpt,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewAlert builds an alert for a threat verdict. The excerpt is the leading
// part of the payload, cut at MaxExcerptLength bytes.
func NewAlert(record TrafficRecord, verdict Verdict) *Alert {
	return &Alert{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		SourceIP:     verdict.SourceAddress,
		ThreatType:   verdict.ThreatType,
		Action:       verdict.Action,
		Level:        verdict.AlertLevel(),
		DeclaredSize: record.DeclaredSize(),
		Excerpt:      excerpt(record.Payload(), MaxExcerptLength),
		Metadata:     make(map[string]string),
	}
}

func (a *Alert) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

func (a *Alert) AddMetadata(key, value string) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}

func (a *Alert) SourceString() string {
	if a.SourceIP == "" {
		return UnknownSource
	}
	return a.SourceIP
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
