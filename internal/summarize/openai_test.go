package summarize

import (
	"encoding/json"
	"testing"
)

func TestChatRequest_TemperatureSurvivesSerialization(t *testing.T) {
	req := chatRequest("gpt-4o-mini", "hi")

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}

	raw, ok := wire["temperature"]
	if !ok {
		t.Fatalf("temperature field missing from request body: %s", body)
	}
	temp, ok := raw.(float64)
	if !ok {
		t.Fatalf("temperature is not a number: %v", raw)
	}
	// Near-zero stands in for an exact zero, which the wire format drops.
	if temp < 0 || temp > 1e-6 {
		t.Errorf("expected near-zero temperature, got %v", temp)
	}
}

func TestChatRequest_PromptAndModel(t *testing.T) {
	req := chatRequest("gpt-4o", "summarize this call")

	if req.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", req.Model)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("expected a single user message, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "user" {
		t.Errorf("expected user role, got %s", req.Messages[0].Role)
	}
	if req.Messages[0].Content != "summarize this call" {
		t.Errorf("prompt not carried through: %q", req.Messages[0].Content)
	}
}
