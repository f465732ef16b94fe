package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/mayberry/pkg/medapi"
)

// emergencyPhrases trigger an emergency payload in chat replies.
var emergencyPhrases = []string{
	"chest pain",
	"can't breathe",
	"cannot breathe",
	"difficulty breathing",
	"stroke",
	"unconscious",
	"severe bleeding",
	"suicidal",
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req medapi.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeFieldError(w, "email", "value is not a valid email address")
		return
	}
	if len(req.Password) < 6 {
		writeFieldError(w, "password", "ensure this value has at least 6 characters")
		return
	}

	s.mu.Lock()
	_, exists := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	s.AddUser(req.Email, req.Password, req.FullName)
	s.mu.Lock()
	u := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, profileOf(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req medapi.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		s.logger.Error("sign token failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, medapi.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profileOf(currentUser(r)))
}

func profileOf(u *user) medapi.Profile {
	return medapi.Profile{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		IsActive:   true,
		IsVerified: false,
		CreatedAt:  medapi.NewTimestamp(u.CreatedAt),
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req medapi.ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeFieldError(w, "content", "field required")
		return
	}

	s.mu.Lock()
	s.encrypted++
	if req.SessionID != "" {
		s.anonymous[req.SessionID] = true
	}
	s.mu.Unlock()

	confidence := 0.85
	resp := medapi.ChatResponse{
		ID:                uuid.New().String(),
		Content:           cannedAnswer(req.Content),
		CreatedAt:         medapi.NewTimestamp(s.now().UTC()),
		RiskLevel:         medapi.RiskLow,
		ConfidenceScore:   &confidence,
		Recommendations:   []string{"Stay hydrated", "Rest", "Consult a doctor if symptoms persist"},
		Sources:           []string{"WHO Guidelines", "CDC Health Information"},
		EmergencyResponse: &medapi.EmergencyPayload{},
		PrivacyStatus:     s.privacyStatus(),
		MedicalMemoryUsed: false,
		AIPersonality:     "empathetic",
		ModelVersion:      ModelVersion,
	}

	if phrase := emergencyPhrase(req.Content); phrase != "" {
		confidence = 0.92
		resp.RiskLevel = medapi.RiskCritical
		resp.IsEmergency = true
		resp.Content = "Your symptoms may indicate a medical emergency. Please seek immediate care."
		resp.Recommendations = []string{"Seek emergency care immediately"}
		resp.EmergencyInfo = []byte(`{"immediate_action_required":true,"trigger":"` + phrase + `"}`)
		resp.EmergencyResponse = &medapi.EmergencyPayload{
			Message:           "Seek care now",
			ImmediateActions:  []string{"Call emergency services", "Do not drive yourself to the hospital"},
			EmergencyContacts: []string{"911"},
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func emergencyPhrase(content string) string {
	lower := strings.ToLower(content)
	for _, p := range emergencyPhrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}

func cannedAnswer(prompt string) string {
	if len(prompt) > 50 {
		prompt = prompt[:50] + "..."
	}
	return "Thank you for your question about '" + prompt + "'. I recommend consulting with a healthcare " +
		"professional for proper evaluation. This is not a substitute for medical advice."
}

func (s *Server) handleSymptomCheck(w http.ResponseWriter, r *http.Request) {
	var req medapi.SymptomInput
	if !decode(w, r, &req) {
		return
	}
	if len(req.Symptoms) == 0 {
		writeFieldError(w, "symptoms", "ensure this value has at least 1 items")
		return
	}

	risk := medapi.RiskLow
	switch {
	case emergencyPhrase(strings.Join(req.Symptoms, " ")) != "":
		risk = medapi.RiskCritical
	case req.Severity >= 8:
		risk = medapi.RiskHigh
	case req.Severity >= 5:
		risk = medapi.RiskMedium
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"possible_conditions": []map[string]any{
			{"name": "Common Cold", "probability": 0.12},
			{"name": "Allergies", "probability": 0.05},
		},
		"risk_level":                 risk,
		"recommendations":            []string{"Stay hydrated", "Rest", "Consult a doctor if symptoms persist"},
		"should_seek_immediate_care": risk == medapi.RiskCritical,
		"confidence_score":           0.8,
		"disclaimer":                 "This analysis is for informational purposes only and does not constitute medical advice.",
	})
}

func (s *Server) handleLabAnalysis(w http.ResponseWriter, r *http.Request) {
	var req medapi.LabResultUpload
	if !decode(w, r, &req) {
		return
	}
	if req.TestName == "" {
		writeFieldError(w, "test_name", "field required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                uuid.New().String(),
		"test_name":         req.TestName,
		"test_type":         req.TestType,
		"analysis":          "Results for " + req.TestName + " are within expected ranges.",
		"abnormal_findings": []string{},
		"recommendations":   []string{"Share these results with your physician"},
		"risk_level":        medapi.RiskLow,
		"confidence_score":  0.75,
		"created_at":        s.now().UTC(),
	})
}

func (s *Server) handleSecondOpinion(w http.ResponseWriter, r *http.Request) {
	var req medapi.SecondOpinionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OriginalDiagnosis == "" {
		writeFieldError(w, "original_diagnosis", "field required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"original_diagnosis":          req.OriginalDiagnosis,
		"ai_assessment":               "The reported symptoms are consistent with " + req.OriginalDiagnosis + ".",
		"agreement_level":             "agree",
		"alternative_diagnoses":       []string{},
		"additional_tests_suggested":  []string{"Follow-up visit in two weeks"},
		"recommendations":             []string{"Continue the current treatment plan"},
		"confidence_score":            0.7,
		"should_seek_another_opinion": false,
	})
}

func (s *Server) privacyStatus() *medapi.PrivacyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	yes := true
	pct := 100.0
	score := 95.0
	encrypted := s.encrypted
	anonymous := len(s.anonymous)
	updated := s.now().UTC().Format(time.RFC3339)
	return &medapi.PrivacyStatus{
		HIPAACompliant:            &yes,
		GDPRCompliant:             &yes,
		LocalProcessingEnabled:    &yes,
		DataEncryptionEnabled:     &yes,
		ZeroKnowledgeArchitecture: &yes,
		AnonymousModeEnabled:      &yes,
		LocalProcessingPercentage: &pct,
		DataEncryptedCount:        &encrypted,
		AnonymousSessions:         &anonymous,
		SecurityScore:             &score,
		LastUpdated:               &updated,
	}
}

func (s *Server) handlePrivacyStatus(w http.ResponseWriter, r *http.Request) {
	envelope(w, s.privacyStatus(), "Privacy status retrieved successfully")
}

func (s *Server) handlePrivacyMetrics(w http.ResponseWriter, r *http.Request) {
	st := s.privacyStatus()
	envelope(w, map[string]any{
		"local_processing_percentage": *st.LocalProcessingPercentage,
		"data_encrypted_count":        *st.DataEncryptedCount,
		"anonymous_sessions":          *st.AnonymousSessions,
		"security_score":              *st.SecurityScore,
		"compliance_status": map[string]bool{
			"hipaa_compliant": *st.HIPAACompliant,
			"gdpr_compliant":  *st.GDPRCompliant,
		},
		"features_enabled": map[string]bool{
			"local_processing": *st.LocalProcessingEnabled,
			"data_encryption":  *st.DataEncryptionEnabled,
			"zero_knowledge":   *st.ZeroKnowledgeArchitecture,
			"anonymous_mode":   *st.AnonymousModeEnabled,
		},
	}, "Privacy metrics retrieved successfully")
}

func (s *Server) handlePrivacyCompliance(w http.ResponseWriter, r *http.Request) {
	envelope(w, map[string]any{
		"hipaa": map[string]any{
			"compliant": true,
			"features": []string{
				"Data encryption at rest and in transit",
				"Access controls and audit logging",
			},
		},
		"gdpr": map[string]any{
			"compliant": true,
			"features": []string{
				"Right to data portability",
				"Right to be forgotten",
			},
		},
		"security_features": map[string]bool{
			"end_to_end_encryption":       true,
			"local_processing":            true,
			"zero_knowledge_architecture": true,
			"anonymous_mode":              true,
		},
	}, "Compliance status retrieved successfully")
}

var userDataTypes = []string{"profile_information", "conversation_history", "health_records", "privacy_settings"}

func (s *Server) handleDataExport(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	envelope(w, map[string]any{
		"user_id":          u.ID,
		"export_timestamp": s.now().UTC().Format(time.RFC3339),
		"data_types":       userDataTypes,
		"export_status":    "prepared",
		"download_url":     "/api/privacy/download/" + u.ID,
	}, "Data export prepared successfully")
}

func (s *Server) handleDataDeletion(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	s.encrypted = 0
	s.anonymous = make(map[string]bool)
	s.mu.Unlock()

	envelope(w, map[string]any{
		"user_id":            u.ID,
		"deletion_timestamp": s.now().UTC().Format(time.RFC3339),
		"data_types_deleted": userDataTypes,
		"deletion_status":    "completed",
	}, "Data deletion completed successfully")
}
