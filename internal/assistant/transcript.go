package assistant

import (
	"context"
	"encoding/json"
	"time"

	"treinos/api/internal/local"
)

// Transcript roles. RoleLoading is the temporary placeholder appended when
// a message is sent and replaced in place once the reply (or error text)
// arrives.
const (
	RoleUser    = "user"
	RoleAI      = "ai"
	RoleLoading = "loading"
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// Transcript persists the chat history under the local chat key.
type Transcript struct {
	store local.Store
}

func NewTranscript(store local.Store) *Transcript {
	return &Transcript{store: store}
}

// Load returns the stored history; malformed data yields an empty one.
func (t *Transcript) Load(ctx context.Context) []Message {
	raw, ok, err := t.store.Get(ctx, local.KeyChat)
	if err != nil || !ok {
		return []Message{}
	}
	var msgs []Message
	if json.Unmarshal([]byte(raw), &msgs) != nil || msgs == nil {
		return []Message{}
	}
	return msgs
}

// Append adds one turn and persists.
func (t *Transcript) Append(ctx context.Context, role, text string) error {
	msgs := t.Load(ctx)
	msgs = append(msgs, Message{Role: role, Text: text, TS: time.Now().UnixMilli()})
	return t.save(ctx, msgs)
}

// ReplaceLastLoading swaps the most recent loading placeholder for an AI
// turn with the given text; if no placeholder remains it appends instead.
func (t *Transcript) ReplaceLastLoading(ctx context.Context, text string) error {
	msgs := t.Load(ctx)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleLoading {
			msgs[i] = Message{Role: RoleAI, Text: text, TS: time.Now().UnixMilli()}
			return t.save(ctx, msgs)
		}
	}
	msgs = append(msgs, Message{Role: RoleAI, Text: text, TS: time.Now().UnixMilli()})
	return t.save(ctx, msgs)
}

func (t *Transcript) save(ctx context.Context, msgs []Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, local.KeyChat, string(raw))
}
