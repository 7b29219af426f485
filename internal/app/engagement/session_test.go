package engagement

import "testing"

func TestReasonLabel_Bounded(t *testing.T) {
	s := &session{e: NewEngine(nil, DefaultConfig())}

	tests := []struct {
		reason string
		want   string
	}{
		{"symptom_logged", "symptom_logged"},
		{"daily_checkin", "daily_checkin"},
		{"badge:first-steps", "badge"},
		{"challenge:6f1c2a9e-0000-4000-8000-000000000000", "challenge"},
		{"manual", "manual"},
		{"survey", "manual"},
		{"coordinator:jane", "manual"},
		{"note: called the clinic", "manual"},
	}
	for _, tt := range tests {
		if got := s.reasonLabel(tt.reason); got != tt.want {
			t.Errorf("reasonLabel(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
