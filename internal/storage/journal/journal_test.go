package journal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestJournalMarksProcessed(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	key := CompletionKey(42)
	require.False(t, j.Processed(key))

	rec, err := j.Prepare(OpComplete, key, 42)
	require.NoError(t, err)
	require.False(t, j.Processed(key), "pending record must not count as processed")

	require.NoError(t, j.MarkDone(rec))
	require.True(t, j.Processed(key))
}

func TestJournalFailedStaysRetryable(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	key := AmendmentKey(OpAmendApply, "amend-1")
	rec, err := j.Prepare(OpAmendApply, key, 1)
	require.NoError(t, err)

	require.NoError(t, j.MarkFailed(rec, errors.New("store unavailable")))
	require.False(t, j.Processed(key))
}

func TestJournalReplayAfterReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	done := CompletionKey(7)
	rec, err := j.Prepare(OpComplete, done, 7)
	require.NoError(t, err)
	require.NoError(t, j.MarkDone(rec))

	failed := AmendmentKey(OpAmendApply, "amend-2")
	rec, err = j.Prepare(OpAmendApply, failed, 7)
	require.NoError(t, err)
	require.NoError(t, j.MarkFailed(rec, errors.New("boom")))

	require.NoError(t, j.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.True(t, reopened.Processed(done), "done record must survive restart")
	require.False(t, reopened.Processed(failed), "failed record must stay retryable")
}
