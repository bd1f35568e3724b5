// Package models defines the data structures flowing through the call
// analytics pipeline: event-log records, persisted transcript segments,
// and outbound push payloads.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DetailTypeTranscribe tags event-log records carrying transcription payloads.
// Records with any other detail-type are not handled by this service.
const DetailTypeTranscribe = "Transcribe"

// Lifecycle event types carried on the call-lifecycle topic.
const (
	LifecycleInProgress = "MediaInsightsInProgress"
	LifecycleStopped    = "MediaInsightsStopped"
)

// TranscriptRecord is the envelope of one event-log record as produced by the
// transcription side of the pipeline.
type TranscriptRecord struct {
	Time            string           `json:"time"`
	ServiceType     string           `json:"service-type"`
	DetailType      string           `json:"detail-type"`
	PipelineID      string           `json:"mediaInsightsPipelineId"`
	TranscriptEvent *TranscriptEvent `json:"TranscriptEvent"`
	Metadata        string           `json:"metadata"`
}

// TranscriptEvent is the nested transcription payload of a Transcribe record.
type TranscriptEvent struct {
	ResultID     string        `json:"ResultId"`
	StartTime    float64       `json:"StartTime"`
	EndTime      float64       `json:"EndTime"`
	IsPartial    bool          `json:"IsPartial"`
	Alternatives []Alternative `json:"Alternatives"`
	ChannelID    string        `json:"ChannelId"`
}

// Alternative is one ranked transcript hypothesis. Only the top alternative
// is used by the pipeline.
type Alternative struct {
	Transcript string `json:"Transcript"`
	Items      []Item `json:"Items"`
}

// Item is a single token within an alternative.
type Item struct {
	StartTime             float64  `json:"StartTime"`
	EndTime               float64  `json:"EndTime"`
	ItemType              string   `json:"ItemType"`
	Content               string   `json:"Content"`
	VocabularyFilterMatch bool     `json:"VocabularyFilterMatch"`
	Speaker               *string  `json:"Speaker"`
	Confidence            *float64 `json:"Confidence"`
	Stable                *bool    `json:"Stable"`
}

// CallMetadata is the decoded form of a record's opaque metadata string.
type CallMetadata struct {
	CallID           string `json:"callId"`
	FromNumber       string `json:"fromNumber"`
	ToNumber         string `json:"toNumber"`
	VoiceConnectorID string `json:"voiceConnectorId"`
	TransactionID    string `json:"transactionId"`
	Direction        string `json:"direction"`
}

// TranscriptSegment is one finalized utterance window for one audio channel
// of one call. Unique per (TransactionID, Timestamp); writes are upserts so
// at-least-once redelivery is a no-op past the first successful write.
type TranscriptSegment struct {
	TransactionID string  `json:"transactionId"`
	Timestamp     int64   `json:"timestamp"` // epoch milliseconds
	ChannelID     string  `json:"channelId"`
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	Transcript    string  `json:"transcript"`
}

// LifecycleRecord is the envelope of one call-lifecycle record.
type LifecycleRecord struct {
	Detail LifecycleDetail `json:"detail"`
}

// LifecycleDetail carries the session state transition.
type LifecycleDetail struct {
	EventType     string `json:"eventType"`
	TransactionID string `json:"transactionId"`
}

// SummarizationMessage is the push payload delivered to viewers once a call's
// summary has been generated.
type SummarizationMessage struct {
	Summarization string `json:"summarization"`
}

// DecodeTranscriptRecord decodes one raw event-log record.
func DecodeTranscriptRecord(data []byte) (*TranscriptRecord, error) {
	var rec TranscriptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode transcript record: %w", err)
	}
	return &rec, nil
}

// DecodeLifecycleRecord decodes one raw call-lifecycle record.
func DecodeLifecycleRecord(data []byte) (*LifecycleRecord, error) {
	var rec LifecycleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode lifecycle record: %w", err)
	}
	return &rec, nil
}

// CallMetadata decodes the record's opaque metadata string.
func (r *TranscriptRecord) CallMetadata() (*CallMetadata, error) {
	var md CallMetadata
	if err := json.Unmarshal([]byte(r.Metadata), &md); err != nil {
		return nil, fmt.Errorf("decode call metadata: %w", err)
	}
	return &md, nil
}

// EventTimestamp converts the envelope's ISO-8601 time field to epoch
// milliseconds, the store's ordering key within a transaction.
func (r *TranscriptRecord) EventTimestamp() (int64, error) {
	t, err := time.Parse(time.RFC3339, r.Time)
	if err != nil {
		return 0, fmt.Errorf("parse event time %q: %w", r.Time, err)
	}
	return t.UnixMilli(), nil
}

// TopTranscript returns the highest-ranked transcript hypothesis, or the
// empty string when the record carries none.
func (e *TranscriptEvent) TopTranscript() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0].Transcript
}
