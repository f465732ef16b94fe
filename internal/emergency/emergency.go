// Package emergency turns the service's emergency signal into an action the
// client presents. It never infers an emergency on its own.
package emergency

import (
	"strings"

	"github.com/user/mayberry/pkg/medapi"
)

// Action is what the client presents to the user when the service flags an
// emergency.
type Action struct {
	Message           string
	ImmediateActions  []string
	EmergencyContacts []string
}

// Present reports whether the service attached an emergency payload. Risk
// level plays no part.
func Present(p *medapi.EmergencyPayload) bool {
	return !p.IsZero()
}

// Evaluate maps a payload to an Action. Fields pass through unchanged.
func Evaluate(p medapi.EmergencyPayload) Action {
	return Action{
		Message:           p.Message,
		ImmediateActions:  append([]string(nil), p.ImmediateActions...),
		EmergencyContacts: append([]string(nil), p.EmergencyContacts...),
	}
}

// Text renders the action as a plain-text notice.
func (a Action) Text() string {
	var b strings.Builder
	b.WriteString("EMERGENCY")
	if a.Message != "" {
		b.WriteString(": ")
		b.WriteString(a.Message)
	}
	b.WriteString("\n")
	writeList(&b, "Immediate actions", a.ImmediateActions)
	writeList(&b, "Emergency contacts", a.EmergencyContacts)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
