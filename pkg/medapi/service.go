package medapi

import (
	"context"
	"encoding/json"
)

// Service defines the calls the client makes against the remote
// medical-assistant service. Implementations handle transport, credential
// attachment and error classification.
type Service interface {
	// Login exchanges credentials for an access token.
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)

	// Register creates an account. It does not authenticate the caller.
	Register(ctx context.Context, req RegisterRequest) error

	// Me fetches the profile of the credential holder.
	Me(ctx context.Context) (*Profile, error)

	// Chat sends one user message and returns the assistant reply.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// SymptomCheck, LabAnalysis and SecondOpinion return the service's
	// domain result verbatim.
	SymptomCheck(ctx context.Context, req SymptomInput) (json.RawMessage, error)
	LabAnalysis(ctx context.Context, req LabResultUpload) (json.RawMessage, error)
	SecondOpinion(ctx context.Context, req SecondOpinionRequest) (json.RawMessage, error)

	PrivacyStatus(ctx context.Context) (*PrivacyStatus, error)
	PrivacyMetrics(ctx context.Context) (json.RawMessage, error)
	PrivacyCompliance(ctx context.Context) (json.RawMessage, error)
	ExportData(ctx context.Context) (json.RawMessage, error)
	DeleteData(ctx context.Context) (json.RawMessage, error)
}

// SymptomInput is the body of POST /medical/symptom-checker.
type SymptomInput struct {
	Symptoms       []string `json:"symptoms"`
	Duration       string   `json:"duration,omitempty"`
	Severity       int      `json:"severity,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
	Age            int      `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
}

// LabResultUpload is the body of POST /medical/lab-analysis.
type LabResultUpload struct {
	TestName  string `json:"test_name"`
	TestType  string `json:"test_type"`
	FileData  string `json:"file_data,omitempty"`
	RawData   string `json:"raw_data,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SecondOpinionRequest is the body of POST /medical/second-opinion.
type SecondOpinionRequest struct {
	OriginalDiagnosis string `json:"original_diagnosis"`
	Symptoms          string `json:"symptoms"`
	CurrentTreatment  string `json:"current_treatment,omitempty"`
	MedicalHistory    string `json:"medical_history,omitempty"`
	AdditionalNotes   string `json:"additional_notes,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
}
