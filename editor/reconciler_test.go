package editor_test

import (
	"testing"

	"github.com/adrianfalk/rga"
	"github.com/adrianfalk/rga/bus"
	"github.com/adrianfalk/rga/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedReplica(t *testing.T, id uint16, queue *bus.ManualQueue, text string) *rga.Replica {
	t.Helper()
	r, err := rga.NewReplica(id, queue)
	require.NoError(t, err)
	var prev rga.Timestamp = rga.Left
	for _, ch := range text {
		ts, err := r.AddRight(prev, ch)
		require.NoError(t, err)
		prev = ts
	}
	return r
}

func TestReconcilerInitializationSyncsEditor(t *testing.T) {
	rq := bus.NewManualQueue()
	r := seedReplica(t, 0, rq, "hi")
	eq := bus.NewManualQueue()
	ed := editor.NewBufferEditor(eq)

	rc := editor.NewReconciler(r, ed)

	assert.Equal(t, "hi", ed.Value())
	assert.NoError(t, rc.Err())
}

func TestTakeUserEditsAppliesDiffToReplica(t *testing.T) {
	rq := bus.NewManualQueue()
	r := seedReplica(t, 0, rq, "hi")
	eq := bus.NewManualQueue()
	ed := editor.NewBufferEditor(eq)
	rc := editor.NewReconciler(r, ed)

	ed.SetValue("hit")
	eq.DrainAll()

	require.NoError(t, rc.Err())
	assert.Equal(t, "hit", r.Text())
}

func TestOnRemoteOpInsertsIntoEditorWithSuppressedNotification(t *testing.T) {
	pq, qq := bus.NewManualQueue(), bus.NewManualQueue()
	p := seedReplica(t, 0, pq, "bc")
	q, err := rga.NewReplicaFromHistory(1, qq, p.History())
	require.NoError(t, err)
	require.NoError(t, rga.Tie(p, q))

	eq := bus.NewManualQueue()
	ed := editor.NewBufferEditor(eq)
	rc := editor.NewReconciler(p, ed)

	// q's clock has observed every timestamp in p's history via replay,
	// so a fresh mint here sorts after every existing sibling at Left —
	// the same mechanic seed 2's prepend-ordering test exercises.
	_, err = q.AddRight(rga.Left, 'a')
	require.NoError(t, err)

	qq.DrainAll()
	pq.DrainAll()

	require.NoError(t, rc.Err())
	assert.Equal(t, "abc", p.Text())
	assert.Equal(t, "abc", ed.Value())
	// The editor's own change notification for the suppressed Insert must
	// never have been scheduled.
	assert.Equal(t, 0, eq.Pending())
}

func TestOnRemoteOpRemovesFromEditor(t *testing.T) {
	pq, qq := bus.NewManualQueue(), bus.NewManualQueue()
	p := seedReplica(t, 0, pq, "abc")
	q, err := rga.NewReplicaFromHistory(1, qq, p.History())
	require.NoError(t, err)
	require.NoError(t, rga.Tie(p, q))

	eq := bus.NewManualQueue()
	ed := editor.NewBufferEditor(eq)
	rc := editor.NewReconciler(p, ed)

	tsB := p.VisibleTimestamps()[1]
	require.NoError(t, q.Remove(tsB))

	qq.DrainAll()
	pq.DrainAll()

	require.NoError(t, rc.Err())
	assert.Equal(t, "ac", p.Text())
	assert.Equal(t, "ac", ed.Value())
}

// TestSlowEditorReconciliation reproduces spec scenario 6: the RGA holds
// "HOME RUN"; the editor removes the space but its change notification
// is still buffered when a remote addRight inserts '*' right after the
// space's predecessor. onRemoteOp's mandatory first step — taking the
// pending user edit before translating the remote op — must absorb the
// space removal first, so the star lands at the right place and the
// final state is "HOME*RUN" on both sides. Draining the stale buffered
// notification afterward must produce no further change.
func TestSlowEditorReconciliation(t *testing.T) {
	pq, qq := bus.NewManualQueue(), bus.NewManualQueue()
	p := seedReplica(t, 0, pq, "HOME RUN")
	q, err := rga.NewReplicaFromHistory(1, qq, p.History())
	require.NoError(t, err)
	require.NoError(t, rga.Tie(p, q))

	eq := bus.NewManualQueue()
	ed := editor.NewBufferEditor(eq)
	rc := editor.NewReconciler(p, ed)
	require.Equal(t, "HOME RUN", ed.Value())

	// The predecessor of the space, captured before either side mutates.
	tsE := p.VisibleTimestamps()[3]

	// User removes the space; the editor's change notification for this
	// is scheduled but deliberately left undrained.
	ed.SetValue("HOMERUN")
	require.Equal(t, 1, eq.Pending())

	// A peer concurrently inserts '*' right after 'E'.
	_, err = q.AddRight(tsE, '*')
	require.NoError(t, err)

	// Deliver only the remote op into p, not the stale editor event.
	qq.DrainAll()
	pq.DrainAll()

	require.NoError(t, rc.Err())
	assert.Equal(t, "HOME*RUN", p.Text())
	assert.Equal(t, "HOME*RUN", ed.Value())

	// Draining the stale editor event now is a no-op: takeUserEdits sees
	// current == lastText and returns immediately.
	eq.DrainAll()
	require.NoError(t, rc.Err())
	assert.Equal(t, "HOME*RUN", p.Text())
	assert.Equal(t, "HOME*RUN", ed.Value())
}
