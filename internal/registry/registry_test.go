package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/models"
)

func newTestJob(t *testing.T) *models.Job {
	t.Helper()
	job := models.NewJob(models.JobKindTransform, models.OutputRequest{Format: "mp3", Quality: models.QualityHigh})
	job.SourcePath = "/data/uploads/" + job.ID.String() + ".wav"
	return job
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)

	require.NoError(t, store.Create(job))

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Create_Invalid(t *testing.T) {
	store := NewMemoryStore()
	job := models.NewJob(models.JobKindTransform, models.OutputRequest{Format: "mp3"})
	// No source path or URL
	err := store.Create(job)
	assert.ErrorIs(t, err, models.ErrSourceRequired)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get("01JUNKJUNKJUNKJUNKJUNKJUNK")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestMemoryStore_Get_ReturnsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)

	// Mutating the snapshot must not affect the stored record
	got.Progress = 77
	again, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))

	err := store.Update(job.ID.String(), func(j *models.Job) {
		j.MarkProcessing()
		j.SetProgress(40)
	})
	require.NoError(t, err)

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, 40, got.Progress)
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update("01JUNKJUNKJUNKJUNKJUNKJUNK", func(j *models.Job) {})
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestMemoryStore_Update_TerminalSticky(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))

	require.NoError(t, store.Update(job.ID.String(), func(j *models.Job) {
		j.MarkProcessing()
		j.MarkFailed(errors.New("boom"))
	}))

	// A spurious late callback must be a no-op
	require.NoError(t, store.Update(job.ID.String(), func(j *models.Job) {
		j.SetProgress(90)
		j.MarkCompleted("/data/output/ghost.mp3")
	}))

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorDetail)
	assert.Empty(t, got.OutputPath)
}

func TestMemoryStore_Update_ProgressNeverDecreases(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))

	require.NoError(t, store.Update(job.ID.String(), func(j *models.Job) { j.MarkProcessing() }))

	for _, pct := range []int{10, 55, 30, 80, 12} {
		require.NoError(t, store.Update(job.ID.String(), func(j *models.Job) { j.SetProgress(pct) }))
	}

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))

	store.Delete(job.ID.String())
	_, err := store.Get(job.ID.String())
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	// Idempotent
	store.Delete(job.ID.String())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	for range 5 {
		require.NoError(t, store.Create(newTestJob(t)))
	}

	jobs := store.List()
	assert.Len(t, jobs, 5)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	job := newTestJob(t)
	require.NoError(t, store.Create(job))
	require.NoError(t, store.Update(job.ID.String(), func(j *models.Job) { j.MarkProcessing() }))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(pct int) {
			defer wg.Done()
			_ = store.Update(job.ID.String(), func(j *models.Job) { j.SetProgress(pct) })
		}(i * 2)
		go func() {
			defer wg.Done()
			_, _ = store.Get(job.ID.String())
			_ = store.List()
		}()
	}
	wg.Wait()

	got, err := store.Get(job.ID.String())
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Progress, 95)
}
