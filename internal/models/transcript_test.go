package models

import (
	"testing"
)

const sampleRecord = `{
	"time": "2024-01-01T00:00:00.000Z",
	"service-type": "media-insights",
	"detail-type": "Transcribe",
	"mediaInsightsPipelineId": "pipeline-1",
	"TranscriptEvent": {
		"ResultId": "result-1",
		"StartTime": 0.5,
		"EndTime": 1.25,
		"IsPartial": false,
		"Alternatives": [
			{"Transcript": "hello", "Items": [{"StartTime": 0.5, "EndTime": 1.0, "ItemType": "pronunciation", "Content": "hello", "VocabularyFilterMatch": false, "Speaker": null, "Confidence": null, "Stable": null}]}
		],
		"ChannelId": "ch_0"
	},
	"metadata": "{\"callId\":\"call-1\",\"fromNumber\":\"+15550100\",\"toNumber\":\"+15550199\",\"voiceConnectorId\":\"vc-1\",\"transactionId\":\"tx1\",\"direction\":\"Outbound\"}"
}`

func TestDecodeTranscriptRecord(t *testing.T) {
	rec, err := DecodeTranscriptRecord([]byte(sampleRecord))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rec.DetailType != DetailTypeTranscribe {
		t.Errorf("expected detail-type Transcribe, got %s", rec.DetailType)
	}
	if rec.TranscriptEvent == nil {
		t.Fatal("expected transcript event")
	}
	if rec.TranscriptEvent.IsPartial {
		t.Error("expected final event")
	}
	if got := rec.TranscriptEvent.TopTranscript(); got != "hello" {
		t.Errorf("expected top transcript 'hello', got %q", got)
	}
	if rec.TranscriptEvent.ChannelID != "ch_0" {
		t.Errorf("expected channel ch_0, got %s", rec.TranscriptEvent.ChannelID)
	}
}

func TestDecodeTranscriptRecord_Malformed(t *testing.T) {
	if _, err := DecodeTranscriptRecord([]byte("{not json")); err == nil {
		t.Fatal("expected decode error for malformed record")
	}
}

func TestCallMetadata(t *testing.T) {
	rec, err := DecodeTranscriptRecord([]byte(sampleRecord))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	md, err := rec.CallMetadata()
	if err != nil {
		t.Fatalf("metadata decode failed: %v", err)
	}
	if md.TransactionID != "tx1" {
		t.Errorf("expected transactionId tx1, got %s", md.TransactionID)
	}
	if md.CallID != "call-1" {
		t.Errorf("expected callId call-1, got %s", md.CallID)
	}
}

func TestCallMetadata_Malformed(t *testing.T) {
	rec := &TranscriptRecord{Metadata: "not json"}
	if _, err := rec.CallMetadata(); err == nil {
		t.Fatal("expected metadata decode error")
	}
}

func TestEventTimestamp(t *testing.T) {
	tests := []struct {
		name string
		time string
		want int64
		ok   bool
	}{
		{"epoch millis", "2024-01-01T00:00:00.000Z", 1704067200000, true},
		{"fractional", "2024-01-01T00:00:00.250Z", 1704067200250, true},
		{"offset", "2024-01-01T09:00:00.000+09:00", 1704067200000, true},
		{"garbage", "yesterday", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &TranscriptRecord{Time: tt.time}
			got, err := rec.EventTimestamp()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestTopTranscript_NoAlternatives(t *testing.T) {
	e := &TranscriptEvent{}
	if got := e.TopTranscript(); got != "" {
		t.Errorf("expected empty transcript, got %q", got)
	}
}
