// Package timeline merges the three message sources a chat client sees --
// the initial fetch, its own optimistic sends, and broker pushes -- into one
// deduplicated, chronologically stable list. It is a pure reducer:
// Apply(timeline, event) returns a new timeline and never mutates the old
// one, so it can be tested without any socket or UI harness.
package timeline

import (
	"sort"
	"strconv"
	"time"
)

// Message is the client-side view of a chat message. ID is the
// server-assigned id, zero while the entry is optimistic; TempID is the
// client-generated key for a pending send. CreatedAt is authoritative once
// ID is set and the local clock before that.
type Message struct {
	ID         int
	TempID     string
	SessionID  int
	SenderID   int
	Type       string
	Content    string
	ImageURL   string
	CreatedAt  time.Time
	Optimistic bool
}

func (m Message) key() string {
	if m.ID != 0 {
		return "srv:" + strconv.Itoa(m.ID)
	}
	return "tmp:" + m.TempID
}

// Event is one input to the reducer.
type Event interface{ isEvent() }

// Fetched merges a page of authoritative messages from the store.
type Fetched struct{ Messages []Message }

// LocalSend inserts an optimistic entry for a not-yet-confirmed send.
type LocalSend struct{ Message Message }

// Ack replaces the most recent pending optimistic entry for the message's
// session with the authoritative message, in one step.
type Ack struct{ Message Message }

// Push merges a broker-delivered message; duplicates are discarded.
type Push struct{ Message Message }

// SendFailed rolls back the optimistic entry for a failed send.
type SendFailed struct{ TempID string }

func (Fetched) isEvent()    {}
func (LocalSend) isEvent()  {}
func (Ack) isEvent()        {}
func (Push) isEvent()       {}
func (SendFailed) isEvent() {}

// Timeline is an immutable snapshot of the merged message list.
type Timeline struct {
	entries  map[string]Message
	order    []string
	byServer map[int]string
}

// New returns an empty timeline.
func New() Timeline {
	return Timeline{
		entries:  map[string]Message{},
		order:    nil,
		byServer: map[int]string{},
	}
}

// Len returns the number of entries.
func (t Timeline) Len() int {
	return len(t.entries)
}

// Contains reports whether the server-assigned id is present.
func (t Timeline) Contains(serverID int) bool {
	_, ok := t.byServer[serverID]
	return ok
}

// Rendered returns the entries in display order: authoritative createdAt
// where known (server timestamps correct out-of-order network delivery),
// insertion order as the tie-break.
func (t Timeline) Rendered() []Message {
	out := make([]Message, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.entries[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Apply reduces one event into a new timeline. For any sequence of events
// the result contains each server id exactly once, and an optimistic entry
// never coexists with its authoritative counterpart.
func Apply(t Timeline, event Event) Timeline {
	switch e := event.(type) {
	case Fetched:
		next := t.clone()
		for _, msg := range e.Messages {
			next.merge(msg)
		}
		return next

	case LocalSend:
		next := t.clone()
		msg := e.Message
		msg.Optimistic = true
		msg.ID = 0
		next.insert(msg)
		return next

	case Ack:
		next := t.clone()
		if key, ok := next.latestOptimistic(e.Message.SessionID); ok {
			next.replace(key, e.Message)
			return next
		}
		// No pending send to reconcile (e.g. the direct response raced a
		// push); fall back to a plain merge.
		next.merge(e.Message)
		return next

	case Push:
		next := t.clone()
		next.merge(e.Message)
		return next

	case SendFailed:
		next := t.clone()
		next.remove("tmp:" + e.TempID)
		return next
	}
	return t
}

func (t Timeline) clone() Timeline {
	entries := make(map[string]Message, len(t.entries))
	for k, v := range t.entries {
		entries[k] = v
	}
	order := make([]string, len(t.order))
	copy(order, t.order)
	byServer := make(map[int]string, len(t.byServer))
	for k, v := range t.byServer {
		byServer[k] = v
	}
	return Timeline{entries: entries, order: order, byServer: byServer}
}

// merge inserts an authoritative message unless its id is already present.
func (t *Timeline) merge(msg Message) {
	if msg.ID == 0 {
		return
	}
	if _, ok := t.byServer[msg.ID]; ok {
		return
	}
	msg.Optimistic = false
	t.insert(msg)
}

func (t *Timeline) insert(msg Message) {
	key := msg.key()
	if _, ok := t.entries[key]; !ok {
		t.order = append(t.order, key)
	}
	t.entries[key] = msg
	if msg.ID != 0 {
		t.byServer[msg.ID] = key
	}
}

// replace swaps an optimistic entry for its authoritative counterpart in
// place, keeping the original order slot so the UI never shows both.
func (t *Timeline) replace(oldKey string, msg Message) {
	if _, ok := t.byServer[msg.ID]; ok {
		// Authoritative copy already arrived via push; just drop the ghost.
		t.remove(oldKey)
		return
	}
	msg.Optimistic = false
	newKey := msg.key()
	delete(t.entries, oldKey)
	t.entries[newKey] = msg
	t.byServer[msg.ID] = newKey
	for i, key := range t.order {
		if key == oldKey {
			t.order[i] = newKey
			return
		}
	}
	t.order = append(t.order, newKey)
}

func (t *Timeline) remove(key string) {
	msg, ok := t.entries[key]
	if !ok {
		return
	}
	delete(t.entries, key)
	if msg.ID != 0 {
		delete(t.byServer, msg.ID)
	}
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// latestOptimistic finds the most recent pending optimistic entry for the
// session. Temporary ids never match server ids, so recency is the match
// criterion for acknowledgements.
func (t *Timeline) latestOptimistic(sessionID int) (string, bool) {
	for i := len(t.order) - 1; i >= 0; i-- {
		key := t.order[i]
		msg := t.entries[key]
		if msg.Optimistic && msg.SessionID == sessionID {
			return key, true
		}
	}
	return "", false
}
