package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func serverMsg(id int, at time.Time) Message {
	return Message{ID: id, SessionID: 1, SenderID: 1, Type: "text", Content: "m", CreatedAt: at}
}

func optimisticMsg(tempID string, at time.Time) Message {
	return Message{TempID: tempID, SessionID: 1, SenderID: 1, Type: "text", Content: "m", CreatedAt: at}
}

func ids(msgs []Message) []int {
	out := make([]int, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestOptimisticSendThenAck(t *testing.T) {
	tl := New()
	tl = Apply(tl, LocalSend{Message: optimisticMsg("t1", base)})

	require.Equal(t, 1, tl.Len())
	require.True(t, tl.Rendered()[0].Optimistic)

	tl = Apply(tl, Ack{Message: serverMsg(7, base.Add(time.Second))})

	rendered := tl.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, 7, rendered[0].ID)
	assert.False(t, rendered[0].Optimistic)
}

func TestAckNeverLeavesGhostWhenPushArrivedFirst(t *testing.T) {
	tl := New()
	tl = Apply(tl, LocalSend{Message: optimisticMsg("t1", base)})
	// The broker echo to this device wins the race against the POST response.
	tl = Apply(tl, Push{Message: serverMsg(7, base.Add(time.Second))})
	tl = Apply(tl, Ack{Message: serverMsg(7, base.Add(time.Second))})

	rendered := tl.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, 7, rendered[0].ID)
	assert.False(t, rendered[0].Optimistic)
}

func TestPushDuplicateIsIdempotent(t *testing.T) {
	tl := New()
	tl = Apply(tl, Push{Message: serverMsg(7, base)})
	again := Apply(tl, Push{Message: serverMsg(7, base)})

	assert.Equal(t, tl.Rendered(), again.Rendered())
	require.Equal(t, 1, again.Len())
}

func TestFetchedAndPushOverlapExactlyOnce(t *testing.T) {
	tl := New()
	tl = Apply(tl, Push{Message: serverMsg(2, base.Add(2*time.Second))})
	tl = Apply(tl, Fetched{Messages: []Message{
		serverMsg(1, base.Add(time.Second)),
		serverMsg(2, base.Add(2 * time.Second)),
		serverMsg(3, base.Add(3 * time.Second)),
	}})

	require.Equal(t, []int{1, 2, 3}, ids(tl.Rendered()))
}

func TestOutOfOrderPushesResortedByCreatedAt(t *testing.T) {
	tl := New()
	tl = Apply(tl, Push{Message: serverMsg(9, base.Add(5*time.Second))})
	tl = Apply(tl, Push{Message: serverMsg(8, base.Add(2*time.Second))})

	require.Equal(t, []int{8, 9}, ids(tl.Rendered()))
}

func TestSendFailedRollsBackOptimisticEntry(t *testing.T) {
	tl := New()
	tl = Apply(tl, LocalSend{Message: optimisticMsg("t1", base)})
	tl = Apply(tl, SendFailed{TempID: "t1"})

	require.Equal(t, 0, tl.Len())
}

func TestAckMatchesMostRecentPendingSend(t *testing.T) {
	tl := New()
	tl = Apply(tl, LocalSend{Message: optimisticMsg("t1", base)})
	tl = Apply(tl, LocalSend{Message: optimisticMsg("t2", base.Add(time.Second))})

	tl = Apply(tl, Ack{Message: serverMsg(7, base.Add(time.Second))})

	rendered := tl.Rendered()
	require.Len(t, rendered, 2)
	// The older pending send is still optimistic; the newest was reconciled.
	assert.True(t, rendered[0].Optimistic)
	assert.Equal(t, 7, rendered[1].ID)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	tl := New()
	tl = Apply(tl, Push{Message: serverMsg(1, base)})

	snapshot := tl.Rendered()
	_ = Apply(tl, Push{Message: serverMsg(2, base.Add(time.Second))})
	_ = Apply(tl, SendFailed{TempID: "none"})

	assert.Equal(t, snapshot, tl.Rendered())
	require.Equal(t, 1, tl.Len())
	require.False(t, tl.Contains(2))
}
