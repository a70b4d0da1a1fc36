package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseAgentType(t *testing.T) {
	tests := []struct {
		in   string
		want AgentType
	}{
		{"app", AgentApp},
		{"app-generator", AgentApp},
		{"Utility", AgentUtility},
		{"widget-agent", AgentWidget},
		{" game ", AgentGame},
		{"info-agent", AgentInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAgentType(tt.in)
			if err != nil {
				t.Fatalf("ParseAgentType(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAgentType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseAgentType("chat-agent"); err == nil {
		t.Error("expected error for unknown agent type")
	}
}

func TestAgentTypeJSONRoundTrip(t *testing.T) {
	req := GenerationRequest{Prompt: "clock", Agent: AgentWidget}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"agent":"widget-agent"`) {
		t.Errorf("agent not encoded as wire id: %s", data)
	}

	var decoded GenerationRequest
	if err := json.Unmarshal([]byte(`{"prompt":"x","agent":"info"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Agent != AgentInfo {
		t.Errorf("decoded agent = %v, want info", decoded.Agent)
	}
}

func TestAgentTypeValid(t *testing.T) {
	for _, a := range AllAgents {
		if !a.Valid() {
			t.Errorf("%v should be valid", a)
		}
	}
	if AgentType(42).Valid() {
		t.Error("AgentType(42) should be invalid")
	}
}
