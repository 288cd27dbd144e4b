// internal/agent/transcript.go
package agent

import (
	"fmt"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// Transcript is an immutable, versioned conversation log. Every change returns
// a new Transcript and leaves the receiver untouched, so a caller holding an
// older version never sees later edits.
type Transcript struct {
	messages []schemas.Message
	version  int
}

// NewTranscript starts a transcript at version zero.
func NewTranscript(messages ...schemas.Message) Transcript {
	return Transcript{messages: append([]schemas.Message(nil), messages...)}
}

// Append returns a transcript with msgs added at the end.
func (t Transcript) Append(msgs ...schemas.Message) Transcript {
	next := make([]schemas.Message, 0, len(t.messages)+len(msgs))
	next = append(next, t.messages...)
	next = append(next, msgs...)
	return Transcript{messages: next, version: t.version + 1}
}

// CompactLastObservation drops the trailing model reply, which the caller is
// about to restate, and rewrites the observation before it as plain text
// carrying prev. Only the newest turn ever holds a full observation or a
// screenshot. Messages that are not observations are left as they are.
func (t Transcript) CompactLastObservation(prev string) Transcript {
	next := append([]schemas.Message(nil), t.messages...)
	if n := len(next); n > 0 && next[n-1].Role == schemas.RoleAssistant {
		next = next[:n-1]
	}
	if n := len(next); n > 0 && next[n-1].Observation {
		next[n-1] = schemas.HumanMessage(fmt.Sprintf("<Observation>%s</Observation>", prev))
	}
	return Transcript{messages: next, version: t.version + 1}
}

// Messages returns a copy of the log.
func (t Transcript) Messages() []schemas.Message {
	return append([]schemas.Message(nil), t.messages...)
}

// Last returns the final message, if any.
func (t Transcript) Last() (schemas.Message, bool) {
	if len(t.messages) == 0 {
		return schemas.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t Transcript) Len() int     { return len(t.messages) }
func (t Transcript) Version() int { return t.version }
