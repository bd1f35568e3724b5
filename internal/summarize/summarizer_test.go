package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"call-analytics-service/internal/models"
)

type fakeLister struct {
	segments map[string][]models.TranscriptSegment
	err      error
}

func (l *fakeLister) ListSegments(ctx context.Context, transactionID string) ([]models.TranscriptSegment, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.segments[transactionID], nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

type fakeModel struct {
	mu       sync.Mutex
	prompts  []string
	response string
	failures int
}

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.failures > 0 {
		m.failures--
		return "", errors.New("endpoint cold")
	}
	return m.response, nil
}

func newTrigger(lister *fakeLister, bc *fakeBroadcaster, model *fakeModel) *Trigger {
	t := New(lister, bc, model, "What is the customer calling about?")
	t.sleep = func(time.Duration) {}
	return t
}

func sessionSegments() []models.TranscriptSegment {
	return []models.TranscriptSegment{
		{TransactionID: "tx1", Timestamp: 1, ChannelID: "ch_0", Transcript: "hello"},
		{TransactionID: "tx1", Timestamp: 2, ChannelID: "ch_1", Transcript: "there"},
	}
}

func TestOnSessionEnded_DeliversSummary(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{"tx1": sessionSegments()}}
	bc := &fakeBroadcaster{}
	model := &fakeModel{response: "Customer greeted."}
	trigger := newTrigger(lister, bc, model)

	if err := trigger.OnSessionEnded(context.Background(), "tx1"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("expected one model invocation, got %d", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0], "Agent: hello\nCaller: there\n") {
		t.Errorf("prompt missing formatted conversation: %q", model.prompts[0])
	}
	if !strings.Contains(model.prompts[0], "What is the customer calling about?") {
		t.Errorf("prompt missing summary question: %q", model.prompts[0])
	}

	if len(bc.payloads) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(bc.payloads))
	}
	var msg models.SummarizationMessage
	if err := json.Unmarshal(bc.payloads[0], &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.Summarization != "Customer greeted." {
		t.Errorf("expected summarization 'Customer greeted.', got %q", msg.Summarization)
	}
}

func TestOnSessionEnded_RetriesColdEndpoint(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{"tx1": sessionSegments()}}
	bc := &fakeBroadcaster{}
	model := &fakeModel{response: "Summary.", failures: 2}
	trigger := newTrigger(lister, bc, model)

	var slept []time.Duration
	trigger.sleep = func(d time.Duration) { slept = append(slept, d) }

	if err := trigger.OnSessionEnded(context.Background(), "tx1"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(model.prompts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(model.prompts))
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 4*time.Second {
		t.Errorf("unexpected backoff schedule: %v", slept)
	}
	if len(bc.payloads) != 1 {
		t.Errorf("expected summary delivered after retry, got %d broadcasts", len(bc.payloads))
	}
}

func TestOnSessionEnded_AbandonsAfterRetryBudget(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{"tx1": sessionSegments()}}
	bc := &fakeBroadcaster{}
	model := &fakeModel{failures: 10}
	trigger := newTrigger(lister, bc, model)

	if err := trigger.OnSessionEnded(context.Background(), "tx1"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(model.prompts) != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", len(model.prompts))
	}
	if len(bc.payloads) != 0 {
		t.Errorf("no summary must be delivered on failure, got %d broadcasts", len(bc.payloads))
	}
}

func TestOnSessionEnded_EmptyTranscriptSkips(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{}}
	bc := &fakeBroadcaster{}
	model := &fakeModel{response: "nothing"}
	trigger := newTrigger(lister, bc, model)

	if err := trigger.OnSessionEnded(context.Background(), "tx-empty"); err != nil {
		t.Fatalf("empty session must not error: %v", err)
	}
	if len(model.prompts) != 0 {
		t.Error("model must not be invoked for an empty transcript")
	}
	if len(bc.payloads) != 0 {
		t.Error("nothing should be broadcast for an empty transcript")
	}
}

func TestHandleLifecycle(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{"tx1": sessionSegments()}}
	bc := &fakeBroadcaster{}
	model := &fakeModel{response: "Summary."}
	trigger := newTrigger(lister, bc, model)

	batch := []kafka.Message{
		{Value: []byte(`{"detail": {"eventType": "MediaInsightsInProgress", "transactionId": "tx1"}}`)},
		{Value: []byte(`not json`)},
		{Value: []byte(`{"detail": {"eventType": "MediaInsightsStopped", "transactionId": "tx1"}}`)},
	}

	if err := trigger.HandleLifecycle(context.Background(), batch); err != nil {
		t.Fatalf("lifecycle batch failed: %v", err)
	}
	if len(bc.payloads) != 1 {
		t.Errorf("expected one summary delivered, got %d", len(bc.payloads))
	}
}

func TestHandleLifecycle_ModelFailureDoesNotFailBatch(t *testing.T) {
	lister := &fakeLister{segments: map[string][]models.TranscriptSegment{"tx1": sessionSegments()}}
	trigger := newTrigger(lister, &fakeBroadcaster{}, &fakeModel{failures: 10})

	batch := []kafka.Message{
		{Value: []byte(`{"detail": {"eventType": "MediaInsightsStopped", "transactionId": "tx1"}}`)},
	}
	if err := trigger.HandleLifecycle(context.Background(), batch); err != nil {
		t.Fatalf("model failure must not fail the lifecycle batch: %v", err)
	}
}

func TestFormatConversation_SpeakerMapping(t *testing.T) {
	segments := []models.TranscriptSegment{
		{ChannelID: "ch_0", Transcript: "how can I help"},
		{ChannelID: "ch_1", Transcript: "my order is late"},
		{ChannelID: "ch_2", Transcript: "hello?"},
	}
	got := FormatConversation(segments)
	want := "Agent: how can I help\nCaller: my order is late\nCaller: hello?\n"
	if got != want {
		t.Errorf("conversation mismatch:\n got %q\nwant %q", got, want)
	}
}
