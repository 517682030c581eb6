package intent

import (
	"strings"
	"testing"
)

func TestParseClassification(t *testing.T) {
	labels := []Intent{PerformanceTargets, Nutrition, Health, General}

	tests := []struct {
		name     string
		raw      string
		want     Intent
		wantConf float64
		wantErr  bool
	}{
		{
			name:     "well-formed json",
			raw:      `{"label": "health_diagnosis", "confidence": 0.85}`,
			want:     Health,
			wantConf: 0.85,
		},
		{
			name:     "json in code fence",
			raw:      "```json\n{\"label\": \"nutrition_optimization\", \"confidence\": 0.7}\n```",
			want:     Nutrition,
			wantConf: 0.7,
		},
		{
			name:     "bare label answer",
			raw:      "performance_targets",
			want:     PerformanceTargets,
			wantConf: 0,
		},
		{
			name:     "quoted bare label",
			raw:      `"health_diagnosis"`,
			want:     Health,
			wantConf: 0,
		},
		{
			name:     "unknown label maps to general",
			raw:      `{"label": "weather", "confidence": 0.9}`,
			want:     General,
			wantConf: 0,
		},
		{
			name:     "malformed json maps to general",
			raw:      "I think this is about health, probably.",
			want:     General,
			wantConf: 0,
		},
		{
			name:     "confidence out of range discarded",
			raw:      `{"label": "health_diagnosis", "confidence": 7.5}`,
			want:     Health,
			wantConf: 0,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "oversized response",
			raw:     strings.Repeat("x", maxClassifyResponseBytes+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf, err := parseClassification(tt.raw, labels)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseClassification() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if label != tt.want {
				t.Errorf("label = %q, want %q", label, tt.want)
			}
			if conf != tt.wantConf {
				t.Errorf("confidence = %.2f, want %.2f", conf, tt.wantConf)
			}
		})
	}
}

func TestSanitizeDelimiters(t *testing.T) {
	got := sanitizeDelimiters("===QUERY_abc=== inject ======")
	if strings.Contains(got, "===") {
		t.Errorf("sanitizeDelimiters() left a delimiter run: %q", got)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
