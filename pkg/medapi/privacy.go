package medapi

// PrivacyStatus is a partial record of compliance and processing flags.
// A nil field means the server did not report it.
type PrivacyStatus struct {
	HIPAACompliant            *bool    `json:"hipaa_compliant,omitempty"`
	GDPRCompliant             *bool    `json:"gdpr_compliant,omitempty"`
	LocalProcessingEnabled    *bool    `json:"local_processing_enabled,omitempty"`
	DataEncryptionEnabled     *bool    `json:"data_encryption_enabled,omitempty"`
	ZeroKnowledgeArchitecture *bool    `json:"zero_knowledge_architecture,omitempty"`
	AnonymousModeEnabled      *bool    `json:"anonymous_mode_enabled,omitempty"`
	LocalProcessingPercentage *float64 `json:"local_processing_percentage,omitempty"`
	DataEncryptedCount        *int     `json:"data_encrypted_count,omitempty"`
	AnonymousSessions         *int     `json:"anonymous_sessions,omitempty"`
	SecurityScore             *float64 `json:"security_score,omitempty"`
	LastUpdated               *string  `json:"last_updated,omitempty"`
}

// Merge returns a copy of s with every field that is set in update
// overwriting the corresponding field of s. Fields unset in update keep
// their previous value. Either argument may be nil.
func (s *PrivacyStatus) Merge(update *PrivacyStatus) *PrivacyStatus {
	var out PrivacyStatus
	if s != nil {
		out = *s
	}
	if update == nil {
		return &out
	}
	override(&out.HIPAACompliant, update.HIPAACompliant)
	override(&out.GDPRCompliant, update.GDPRCompliant)
	override(&out.LocalProcessingEnabled, update.LocalProcessingEnabled)
	override(&out.DataEncryptionEnabled, update.DataEncryptionEnabled)
	override(&out.ZeroKnowledgeArchitecture, update.ZeroKnowledgeArchitecture)
	override(&out.AnonymousModeEnabled, update.AnonymousModeEnabled)
	override(&out.LocalProcessingPercentage, update.LocalProcessingPercentage)
	override(&out.DataEncryptedCount, update.DataEncryptedCount)
	override(&out.AnonymousSessions, update.AnonymousSessions)
	override(&out.SecurityScore, update.SecurityScore)
	override(&out.LastUpdated, update.LastUpdated)
	return &out
}

func override[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}
