package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/mayberry/internal/config"
	"github.com/user/mayberry/internal/delivery"
	"github.com/user/mayberry/internal/fakeapi"
	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/session"
	"github.com/user/mayberry/internal/state"
	"github.com/user/mayberry/internal/types"
	"github.com/user/mayberry/pkg/medapi"
)

func init() {
	color.NoColor = true
}

func testApp(t *testing.T) *app {
	t.Helper()
	fake := fakeapi.New()
	fake.AddUser("a@b.com", "Secret1", "Ada Patient")
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfg := &config.Config{DataDir: dir}
	cfg.API.BaseURL = server.URL
	cfg.Escalation.Targets = []string{"test:ops"}

	gw := gateway.New(server.URL)
	client := gateway.NewClient(gw)
	mgr := session.New(client, state.NewCredentialStore(dir), nil)
	gw.Bind(mgr)

	a := &app{
		cfg:         cfg,
		gw:          gw,
		client:      client,
		session:     mgr,
		transcripts: state.NewTranscriptStore(dir),
		exports:     state.NewExportStore(dir),
		delivery:    delivery.NewRegistry(),
	}
	a.escalator = a.delivery.Escalator(cfg.Escalation.Targets, time.Second, slog.Default())
	require.NoError(t, mgr.Login(context.Background(), "a@b.com", "Secret1"))
	return a
}

func TestREPL(t *testing.T) {
	a := testApp(t)
	var delivered []string
	a.delivery.Register("test:", func(_ context.Context, target, message string) error {
		delivered = append(delivered, target+" "+message)
		return nil
	})

	var out bytes.Buffer
	conv := a.newConversation(&out, true)
	defer conv.Close()

	in := strings.NewReader("I have a cough\n\n/reset\nsevere chest pain\n/quit\nnever sent\n")
	require.NoError(t, a.repl(context.Background(), conv, in, &out))
	a.escalator.Wait()

	text := out.String()
	assert.Contains(t, text, "Thank you for your question about 'I have a cough'")
	assert.Contains(t, text, "risk=low confidence=85%")
	assert.Contains(t, text, " EMERGENCY  Seek care now")
	assert.Contains(t, text, "  - 911")
	assert.NotContains(t, text, "never sent")

	require.Len(t, delivered, 1)
	assert.True(t, strings.HasPrefix(delivered[0], "test:ops EMERGENCY: Seek care now"))

	msgs, err := a.transcripts.Tail(context.Background(), conv.SessionID(), 0)
	require.NoError(t, err)
	// greeting, exchange, greeting after reset, exchange
	assert.Len(t, msgs, 6)
}

func TestREPLStopsWhenSessionEnds(t *testing.T) {
	a := testApp(t)
	a.session.Expire()

	var out bytes.Buffer
	conv := a.newConversation(&out, false)
	defer conv.Close()

	err := a.repl(context.Background(), conv, strings.NewReader("hello\nagain\n"), &out)
	assert.ErrorIs(t, err, gateway.ErrAuthorizationExpired)
	assert.Contains(t, out.String(), "I'm sorry, I couldn't process your message right now.")
}

func TestPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	printMessage(&buf, types.Message{
		Role:            types.RoleAssistant,
		Content:         "Rest and hydrate.",
		RiskLevel:       medapi.RiskMedium,
		ConfidenceScore: new(float64),
		Recommendations: []string{"Rest"},
		Sources:         []string{"WHO", "CDC"},
	})
	assert.Equal(t, "mayberry> Rest and hydrate.\n  [risk=medium confidence=0%]\n  - Rest\n  sources: WHO; CDC\n", buf.String())

	buf.Reset()
	printMessage(&buf, types.Message{Role: types.RoleUser, Content: "hi"})
	assert.Equal(t, "you> hi\n", buf.String())
}

func TestPrivacyWatcherPrintsChanges(t *testing.T) {
	a := testApp(t)
	var out bytes.Buffer
	w := &privacyWatcher{client: a.client, out: &out, stop: func() {}}

	w.poll(context.Background())
	first := out.Len()
	assert.Contains(t, out.String(), "HIPAA compliant")

	w.poll(context.Background())
	assert.Equal(t, first, out.Len(), "unchanged status is not printed again")

	conv := a.newConversation(&bytes.Buffer{}, false)
	require.NoError(t, conv.Send(context.Background(), "hello"))
	w.poll(context.Background())
	assert.Greater(t, out.Len(), first)
	assert.NoError(t, w.err)
}

func TestPrivacyWatcherStopsOnExpiry(t *testing.T) {
	a := testApp(t)
	a.session.Expire()

	stopped := false
	w := &privacyWatcher{client: a.client, out: &bytes.Buffer{}, stop: func() { stopped = true }}
	w.poll(context.Background())
	assert.True(t, stopped)
	assert.ErrorIs(t, w.err, gateway.ErrAuthorizationExpired)
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Sure?"))
	assert.True(t, confirm(strings.NewReader(" YES \n"), &out, "Sure?"))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Sure?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Sure?"))
	assert.Contains(t, out.String(), "Sure? [y/N]: ")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"log", "telegram:42"}, splitList(" log, ,telegram:42 "))
	assert.Nil(t, splitList(""))
}

func TestSlowEscalationTargetDoesNotHoldChat(t *testing.T) {
	a := testApp(t)
	release := make(chan struct{})
	a.delivery.Register("test:", func(ctx context.Context, _, _ string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	var out bytes.Buffer
	conv := a.newConversation(&out, false)
	defer conv.Close()

	ctx := context.Background()
	require.NoError(t, conv.Send(ctx, "severe chest pain"))
	require.NoError(t, conv.Send(ctx, "what should I do next?"))
	assert.Contains(t, out.String(), " EMERGENCY  Seek care now")
	assert.Len(t, conv.Messages(), 5)

	close(release)
	a.escalator.Wait()
}

func TestConfigChecks(t *testing.T) {
	tests := []struct {
		key, in, want string
		wantErr       bool
	}{
		{"api.base_url", "https://api.example.com/", "https://api.example.com", false},
		{"api.base_url", "localhost:8000", "", true},
		{"log_level", "DEBUG", "debug", false},
		{"log_level", "verbose", "", true},
		{"privacy.watch_schedule", "@every 10m", "@every 10m", false},
		{"privacy.watch_schedule", "sometimes", "", true},
		{"escalation.targets", "log, telegram:42", `["log","telegram:42"]`, false},
		{"escalation.targets", `["log"]`, `["log"]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.in, func(t *testing.T) {
			got, err := checkers[tt.key](tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigSetTargetsReloads(t *testing.T) {
	old := cfgPath
	cfgPath = filepath.Join(t.TempDir(), "config.json")
	t.Cleanup(func() { cfgPath = old })

	require.NoError(t, configSetCmd.RunE(configSetCmd, []string{"escalation.targets", "log,telegram:42"}))
	require.Error(t, configSetCmd.RunE(configSetCmd, []string{"no.such.key", "x"}))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "telegram:42"}, cfg.Escalation.Targets)
}
