package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashHex(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentHashHex([]byte(tt.in)), "hash of %q", tt.in)
	}
	assert.NotEqual(t, ContentHashHex([]byte("a")), ContentHashHex([]byte("b")))
}

func TestNewJob(t *testing.T) {
	a := NewJob(KindRename, "old.md", "new.md")
	b := NewJob(KindRebuild, "", "")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Less(t, a.ID, b.ID, "ids sort by creation time")

	snap := a.Snapshot()
	assert.Equal(t, StatusQueued, snap.Status)
	assert.Equal(t, KindRename, snap.Kind)
	assert.Equal(t, "old.md", snap.Path)
	assert.Equal(t, "new.md", snap.NewPath)
	assert.False(t, snap.Done())
}

func TestJob_Updates(t *testing.T) {
	job := NewJob(KindModify, "a.md", "")
	created := job.Snapshot().UpdatedAt
	time.Sleep(2 * time.Millisecond)

	job.SetStatus(StatusRunning, "modify")
	job.IncrAttempts()
	job.IncrAttempts()
	job.AddError("store unavailable")
	job.SetEntries(3)
	job.setContentHash("abc")

	snap := job.Snapshot()
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, "modify", snap.Phase)
	assert.Equal(t, Progress{Attempts: 2, Entries: 3, Errors: []string{"store unavailable"}}, snap.Progress)
	assert.Equal(t, "abc", snap.ContentHash)
	assert.True(t, snap.UpdatedAt.After(created))
}

func TestJob_SnapshotIsACopy(t *testing.T) {
	job := NewJob(KindRebuild, "", "")
	empty := job.Snapshot()
	require.NotNil(t, empty.Progress.Errors)

	job.AddError("first")
	snap := job.Snapshot()
	snap.Progress.Errors[0] = "changed"
	assert.Equal(t, []string{"first"}, job.Snapshot().Progress.Errors)

	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"errors":[]`)
	assert.Contains(t, string(data), `"job_id":"`+job.ID+`"`)
}

func TestJobSnapshot_Done(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		StatusQueued:     false,
		StatusRunning:    false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusDupSkipped: true,
	} {
		assert.Equal(t, want, JobSnapshot{Status: status}.Done(), "status %s", status)
	}
}

func TestJobStore(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Cleanup()

	stale := NewJob(KindDelete, "gone.md", "")
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := NewJob(KindRebuild, "", "")
	store.Put(stale)
	store.Put(fresh)

	assert.Same(t, fresh, store.Get(fresh.ID))
	assert.Nil(t, store.Get("missing"))

	store.Cleanup()
	assert.Nil(t, store.Get(stale.ID))
	assert.NotNil(t, store.Get(fresh.ID))
}
