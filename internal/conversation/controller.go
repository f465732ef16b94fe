// Package conversation holds one conversation with the assistant: its
// message history, the send state machine and the tracked privacy status.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/mayberry/internal/emergency"
	"github.com/user/mayberry/internal/types"
	"github.com/user/mayberry/pkg/medapi"
)

// Greeting is the first message of every conversation.
const Greeting = "Hello! I'm MAYBERRY, your AI medical assistant. How can I help you today?"

// Apology replaces the assistant reply when a send fails.
const Apology = "I'm sorry, I couldn't process your message right now. Please try again."

var (
	ErrBusy       = errors.New("a message is already being sent")
	ErrEmptyInput = errors.New("message is empty")
	ErrClosed     = errors.New("conversation is closed")
)

// State is the send state of a conversation.
type State int

const (
	Idle State = iota
	Sending
	Failed
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// ChatAPI is the single call the controller makes.
type ChatAPI interface {
	Chat(ctx context.Context, req medapi.ChatRequest) (*medapi.ChatResponse, error)
}

// Recorder persists appended messages. types.TranscriptStore satisfies it.
type Recorder interface {
	Append(ctx context.Context, msg *types.Message) error
}

// EscalationHandler receives the action for every reply that carries an
// emergency payload. It runs on the Send path, so slow delivery belongs in
// the background.
type EscalationHandler func(ctx context.Context, action emergency.Action)

// Update is delivered to subscribers. Exactly one of Message and State is
// meaningful: Message is set when a message was appended, otherwise State
// is the new send state. Reset is reported with Reset set.
type Update struct {
	Message *types.Message
	State   State
	Reset   bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithEscalation(h EscalationHandler) Option {
	return func(c *Controller) { c.escalate = h }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns one conversation. Send admits one message at a time.
type Controller struct {
	chat      ChatAPI
	sessionID types.ConversationID
	logger    *slog.Logger
	recorder  Recorder
	escalate  EscalationHandler
	now       func() time.Time
	inflight  *semaphore.Weighted

	mu         sync.Mutex
	messages   []*types.Message
	nextID     types.MessageID
	state      State
	privacy    *medapi.PrivacyStatus
	generation int
	closed     bool
	subs       map[int]func(Update)
	nextSub    int
}

// New creates a conversation with a fresh session id, seeded with the
// greeting.
func New(chat ChatAPI, opts ...Option) *Controller {
	c := &Controller{
		chat:      chat,
		sessionID: types.NewConversationID(),
		logger:    slog.Default(),
		now:       time.Now,
		inflight:  semaphore.NewWeighted(1),
		subs:      make(map[int]func(Update)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", string(c.sessionID))

	greeting := c.appendLocked(&types.Message{Role: types.RoleAssistant, Content: Greeting})
	c.record(context.Background(), greeting)
	return c
}

// SessionID returns the id sent with every chat call. It never changes.
func (c *Controller) SessionID() types.ConversationID {
	return c.sessionID
}

// Messages returns a copy of the history.
func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *clone(m)
	}
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Privacy returns the privacy status accumulated from replies, or nil if no
// reply has reported one.
func (c *Controller) Privacy() *medapi.PrivacyStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.privacy == nil {
		return nil
	}
	return c.privacy.Merge(nil)
}

// Subscribe registers fn for every appended message and state change. The
// returned function removes the subscription.
func (c *Controller) Subscribe(fn func(Update)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Send appends text as a user message and asks the service for a reply.
// It returns ErrBusy while another send is in flight and ErrEmptyInput for
// blank text, leaving the history untouched in both cases. A failed call
// appends an apology and returns the classified error unchanged.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	if !c.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	gen := c.generation
	user := c.appendLocked(&types.Message{Role: types.RoleUser, Content: text})
	c.state = Sending
	subs := c.subscribers()
	c.mu.Unlock()

	c.notify(subs, Update{Message: clone(user)})
	c.notify(subs, Update{State: Sending})
	c.record(ctx, user)

	resp, err := c.chat.Chat(ctx, medapi.ChatRequest{Content: text, SessionID: string(c.sessionID)})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("discarding chat response for closed conversation", "error", err)
		return ErrClosed
	}
	if c.generation != gen {
		c.state = Idle
		subs = c.subscribers()
		c.mu.Unlock()
		c.logger.Debug("discarding chat response from before reset", "error", err)
		c.notify(subs, Update{State: Idle})
		return err
	}

	if err != nil {
		zero := 0.0
		apology := c.appendLocked(&types.Message{
			Role:            types.RoleAssistant,
			Content:         Apology,
			ConfidenceScore: &zero,
			IsError:         true,
		})
		c.state = Failed
		subs = c.subscribers()
		c.mu.Unlock()

		c.logger.Warn("chat failed", "error", err)
		c.notify(subs, Update{Message: clone(apology)})
		c.notify(subs, Update{State: Failed})
		c.record(ctx, apology)
		c.settle()
		return err
	}

	reply := c.appendLocked(fromResponse(resp))
	if resp.PrivacyStatus != nil {
		c.privacy = c.privacy.Merge(resp.PrivacyStatus)
	}
	c.state = Idle
	subs = c.subscribers()
	c.mu.Unlock()

	c.notify(subs, Update{Message: clone(reply)})
	c.notify(subs, Update{State: Idle})
	c.record(ctx, reply)

	if emergency.Present(resp.EmergencyResponse) {
		action := emergency.Evaluate(*resp.EmergencyResponse)
		c.logger.Warn("emergency flagged by service", "risk_level", resp.RiskLevel)
		if c.escalate != nil {
			c.escalate(ctx, action)
		}
	}
	return nil
}

// Reset clears the history back to the greeting. The session id is kept. A
// reply still in flight is discarded when it arrives.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	c.messages = nil
	c.privacy = nil
	greeting := c.appendLocked(&types.Message{Role: types.RoleAssistant, Content: Greeting})
	subs := c.subscribers()
	c.mu.Unlock()

	c.notify(subs, Update{Reset: true})
	c.notify(subs, Update{Message: clone(greeting)})
	c.record(context.Background(), greeting)
}

// Close ends the conversation. Replies arriving afterwards are discarded and
// further sends return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = make(map[int]func(Update))
}

// settle returns a failed conversation to Idle so the user can retry.
func (c *Controller) settle() {
	c.mu.Lock()
	if c.state != Failed {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	subs := c.subscribers()
	c.mu.Unlock()
	c.notify(subs, Update{State: Idle})
}

func fromResponse(resp *medapi.ChatResponse) *types.Message {
	msg := &types.Message{
		Role:            types.RoleAssistant,
		Content:         resp.Content,
		CreatedAt:       resp.CreatedAt.Time,
		RiskLevel:       resp.RiskLevel,
		ConfidenceScore: resp.ConfidenceScore,
		Recommendations: resp.Recommendations,
		Sources:         resp.Sources,
		PrivacyStatus:   resp.PrivacyStatus,
	}
	if emergency.Present(resp.EmergencyResponse) {
		msg.EmergencyResponse = resp.EmergencyResponse
	}
	return msg
}

// appendLocked assigns the id, conversation and timestamp of msg and adds it
// to the history. A timestamp earlier than the previous message's is raised
// to it. Caller must hold c.mu.
func (c *Controller) appendLocked(msg *types.Message) *types.Message {
	c.nextID++
	msg.ID = c.nextID
	msg.ConversationID = c.sessionID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.now()
	}
	if n := len(c.messages); n > 0 {
		if last := c.messages[n-1].CreatedAt; msg.CreatedAt.Before(last) {
			msg.CreatedAt = last
		}
	}
	c.messages = append(c.messages, msg)
	return msg
}

// clone copies msg so receivers cannot alter the history. Slices are copied
// too; the emergency and privacy pointers are shared read-only.
func clone(msg *types.Message) *types.Message {
	cp := *msg
	cp.Recommendations = append([]string(nil), msg.Recommendations...)
	cp.Sources = append([]string(nil), msg.Sources...)
	return &cp
}

// subscribers snapshots the subscriber set. Caller must hold c.mu.
func (c *Controller) subscribers() []func(Update) {
	subs := make([]func(Update), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (c *Controller) notify(subs []func(Update), u Update) {
	for _, fn := range subs {
		fn(u)
	}
}

func (c *Controller) record(ctx context.Context, msg *types.Message) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Append(context.WithoutCancel(ctx), clone(msg)); err != nil {
		c.logger.Warn("failed to record message", "message_id", msg.ID, "error", err)
	}
}
