package medapi

import (
	"encoding/json"
	"testing"
)

func boolPtr(b bool) *bool { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestPrivacyStatusMergeOverridesPresentFields(t *testing.T) {
	prev := &PrivacyStatus{
		LocalProcessingEnabled: boolPtr(true),
		DataEncryptionEnabled:  boolPtr(true),
		SecurityScore:          floatPtr(80),
	}
	update := &PrivacyStatus{
		DataEncryptionEnabled: boolPtr(false),
		SecurityScore:         floatPtr(95),
	}

	merged := prev.Merge(update)

	if merged.LocalProcessingEnabled == nil || !*merged.LocalProcessingEnabled {
		t.Error("expected local_processing_enabled to be retained")
	}
	if merged.DataEncryptionEnabled == nil || *merged.DataEncryptionEnabled {
		t.Error("expected data_encryption_enabled to be overwritten with false")
	}
	if merged.SecurityScore == nil || *merged.SecurityScore != 95 {
		t.Errorf("expected security_score 95, got %v", merged.SecurityScore)
	}
	if merged.HIPAACompliant != nil {
		t.Error("expected hipaa_compliant to stay unset")
	}
}

func TestPrivacyStatusMergeDoesNotAlias(t *testing.T) {
	prev := &PrivacyStatus{SecurityScore: floatPtr(10)}
	update := &PrivacyStatus{SecurityScore: floatPtr(20)}

	merged := prev.Merge(update)
	*update.SecurityScore = 99

	if *merged.SecurityScore != 20 {
		t.Errorf("merged value changed through update pointer: %v", *merged.SecurityScore)
	}
	if *prev.SecurityScore != 10 {
		t.Errorf("receiver was modified: %v", *prev.SecurityScore)
	}
}

func TestPrivacyStatusMergeNil(t *testing.T) {
	var prev *PrivacyStatus
	merged := prev.Merge(&PrivacyStatus{GDPRCompliant: boolPtr(true)})
	if merged.GDPRCompliant == nil || !*merged.GDPRCompliant {
		t.Error("expected gdpr_compliant from update")
	}

	same := merged.Merge(nil)
	if same.GDPRCompliant == nil || !*same.GDPRCompliant {
		t.Error("nil update should retain every field")
	}
}

func TestEmergencyPayloadIsZero(t *testing.T) {
	var resp ChatResponse
	if err := json.Unmarshal([]byte(`{"content":"ok","emergency_response":{}}`), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.EmergencyResponse.IsZero() {
		t.Error("empty emergency_response object should be zero")
	}

	full := &EmergencyPayload{Message: "Seek care now"}
	if full.IsZero() {
		t.Error("payload with a message should not be zero")
	}
}
