package fakeapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/mayberry/internal/conversation"
	"github.com/user/mayberry/internal/emergency"
	"github.com/user/mayberry/internal/fakeapi"
	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/session"
	"github.com/user/mayberry/internal/state"
	"github.com/user/mayberry/pkg/medapi"
)

type stack struct {
	fake    *fakeapi.Server
	gw      *gateway.Gateway
	client  *gateway.Client
	session *session.Manager
	creds   *state.CredentialStore
}

func newStack(t *testing.T, opts ...fakeapi.Option) *stack {
	t.Helper()
	fake := fakeapi.New(opts...)
	fake.AddUser("a@b.com", "Secret1", "Ada Patient")
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	gw := gateway.New(server.URL)
	client := gateway.NewClient(gw)
	creds := state.NewCredentialStore(t.TempDir())
	mgr := session.New(client, creds, nil)
	gw.Bind(mgr)
	return &stack{fake: fake, gw: gw, client: client, session: mgr, creds: creds}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	fakeapi.New().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLoginAndChat(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))
	cur := s.session.Current()
	require.Equal(t, session.Authenticated, cur.Status)
	assert.Equal(t, "Ada Patient", cur.User.FullName)

	stored, err := s.creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cur.Token, stored)

	exp, ok := s.session.TokenExpiry()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, time.Minute)

	var actions []emergency.Action
	conv := conversation.New(s.client, conversation.WithEscalation(func(_ context.Context, a emergency.Action) {
		actions = append(actions, a)
	}))

	require.NoError(t, conv.Send(ctx, "I have a headache"))
	require.NoError(t, conv.Send(ctx, "Now I have severe chest pain"))

	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, medapi.RiskLow, msgs[2].RiskLevel)
	assert.Nil(t, msgs[2].EmergencyResponse)
	assert.Equal(t, medapi.RiskCritical, msgs[4].RiskLevel)
	require.Len(t, actions, 1)
	assert.Equal(t, "Seek care now", actions[0].Message)
	assert.Equal(t, []string{"911"}, actions[0].EmergencyContacts)

	p := conv.Privacy()
	require.NotNil(t, p)
	assert.Equal(t, 2, *p.DataEncryptedCount)
	assert.Equal(t, 1, *p.AnonymousSessions)
}

func TestWrongPasswordSurfacesDetail(t *testing.T) {
	s := newStack(t)
	err := s.session.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.Equal(t, session.Unauthenticated, s.session.Current().Status)
}

func TestRegisterValidation(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	err := s.session.Register(ctx, medapi.RegisterRequest{Email: "not-an-email", Password: "Secret1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrValidation))
	assert.Equal(t, "value is not a valid email address", err.Error())

	err = s.session.Register(ctx, medapi.RegisterRequest{Email: "a@b.com", Password: "Secret1"})
	require.Error(t, err)
	assert.Equal(t, "Email already registered", err.Error())

	require.NoError(t, s.session.Register(ctx, medapi.RegisterRequest{FullName: "New", Email: "new@b.com", Password: "Secret1"}))
	require.NoError(t, s.session.Login(ctx, "new@b.com", "Secret1"))
}

func TestRotatedKeyExpiresSession(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))

	s.fake.Rotate([]byte("new-secret"))

	_, err := s.client.PrivacyStatus(ctx)
	require.True(t, errors.Is(err, gateway.ErrAuthorizationExpired))
	assert.Equal(t, session.Unauthenticated, s.session.Current().Status)

	stored, err := s.creds.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// A fresh process restoring the discarded credential stays signed out.
	restored := session.New(s.client, s.creds, nil)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, session.Unauthenticated, restored.Current().Status)
}

func TestRestoreAcrossProcesses(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))

	next := session.New(s.client, s.creds, nil)
	s.gw.Bind(next)
	require.NoError(t, next.Restore(ctx))
	assert.Equal(t, session.Authenticated, next.Current().Status)
}

func TestUnauthenticatedChatIsRejected(t *testing.T) {
	s := newStack(t)
	_, err := s.client.Chat(context.Background(), medapi.ChatRequest{Content: "hi", SessionID: "x"})
	require.True(t, errors.Is(err, gateway.ErrAuthorizationExpired))
	assert.Equal(t, "Not authenticated", gateway.Detail(err, ""))
}

func TestPrivacyEndpoints(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))

	status, err := s.client.PrivacyStatus(ctx)
	require.NoError(t, err)
	assert.True(t, *status.HIPAACompliant)

	metrics, err := s.client.PrivacyMetrics(ctx)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(metrics, &m))
	assert.Contains(t, m, "features_enabled")

	compliance, err := s.client.PrivacyCompliance(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(compliance), "Right to be forgotten")

	export, err := s.client.ExportData(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(export), `"export_status":"prepared"`)

	deletion, err := s.client.DeleteData(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(deletion), `"deletion_status":"completed"`)
}

func TestMedicalPassThrough(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))

	symptoms, err := s.client.SymptomCheck(ctx, medapi.SymptomInput{Symptoms: []string{"cough"}, Severity: 6})
	require.NoError(t, err)
	var analysis struct {
		RiskLevel medapi.RiskLevel `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal(symptoms, &analysis))
	assert.Equal(t, medapi.RiskMedium, analysis.RiskLevel)

	lab, err := s.client.LabAnalysis(ctx, medapi.LabResultUpload{TestName: "CBC", TestType: "blood"})
	require.NoError(t, err)
	assert.Contains(t, string(lab), "CBC")

	opinion, err := s.client.SecondOpinion(ctx, medapi.SecondOpinionRequest{OriginalDiagnosis: "Migraine", Symptoms: "headache"})
	require.NoError(t, err)
	assert.Contains(t, string(opinion), "Migraine")

	_, err = s.client.SymptomCheck(ctx, medapi.SymptomInput{})
	require.True(t, errors.Is(err, gateway.ErrValidation))
}

func TestInjectedFaults(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	require.NoError(t, s.session.Login(ctx, "a@b.com", "Secret1"))

	s.fake.Fail("/medical/chat", http.StatusServiceUnavailable, "Model warming up")
	conv := conversation.New(s.client)
	err := conv.Send(ctx, "hello")
	require.True(t, errors.Is(err, gateway.ErrServerFault))
	assert.True(t, gateway.Retryable(err))
	assert.Equal(t, session.Authenticated, s.session.Current().Status)

	s.fake.Clear()
	require.NoError(t, conv.Send(ctx, "hello"))
	assert.Len(t, conv.Messages(), 5)
}
