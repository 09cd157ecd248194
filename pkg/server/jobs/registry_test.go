package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxtor/voxtor/pkg/event"
)

// stubRunner is a controllable transcription collaborator.
type stubRunner struct {
	delay  time.Duration
	text   string
	err    error
	panics bool

	// release, when non-nil, blocks Run until closed. Lets tests hold a
	// worker in the processing state.
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *stubRunner) Run(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.panics {
		panic("collaborator exploded")
	}
	if s.release != nil {
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if progress != nil {
		progress(ProgressStaged, "staged")
		progress(ProgressRecognized, "recognized")
	}
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitTerminal(t *testing.T, r *Registry, id string) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = r.Poll(id)
		return snap.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached a terminal state", id)
	return snap
}

func TestSubmit_ReturnsUniqueIDs(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "ok"})

	seen := make(map[string]bool)
	for range 50 {
		id, err := r.Submit(Request{Payload: []byte("audio"), Filename: "a.wav"})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate job id %s", id)
		seen[id] = true
	}
}

func TestSubmit_NeverTerminalSynchronously(t *testing.T) {
	release := make(chan struct{})
	r := NewRegistry(&stubRunner{text: "ok", release: release})

	id, err := r.Submit(Request{Payload: []byte("audio"), Filename: "a.wav"})
	require.NoError(t, err)

	snap := r.Poll(id)
	require.Contains(t, []Status{StatusQueued, StatusProcessing}, snap.Status)
	require.Empty(t, snap.Result)
	require.Empty(t, snap.Error)

	close(release)
	waitTerminal(t, r, id)
}

func TestSubmit_EmptyPayloadRejected(t *testing.T) {
	runner := &stubRunner{text: "ok"}
	r := NewRegistry(runner)

	id, err := r.Submit(Request{Payload: nil, Filename: "a.wav"})
	require.ErrorIs(t, err, ErrEmptyPayload)
	require.True(t, IsInvalidInput(err))
	require.Empty(t, id)

	// No job record and no worker were created.
	require.Equal(t, 0, r.Len())
	require.Equal(t, 0, runner.callCount())
}

func TestJob_CompletesWithResult(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "hello world", delay: 10 * time.Millisecond})

	id, err := r.Submit(Request{
		Payload:  []byte("audio-bytes"),
		Filename: "meeting.mp3",
		Options:  Options{Engine: "whisper", Language: "en-US"},
	})
	require.NoError(t, err)

	snap := waitTerminal(t, r, id)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, "hello world", snap.Result)
	require.Empty(t, snap.Error)
	require.Equal(t, ProgressDone, snap.Progress)
	require.Equal(t, "meeting.mp3", snap.Filename)
	require.Equal(t, "whisper", snap.Engine)
	require.False(t, snap.CompletedAt.IsZero())
}

func TestJob_FailureCapturedAsTerminalError(t *testing.T) {
	r := NewRegistry(&stubRunner{err: errors.New("bad format")})

	id, err := r.Submit(Request{Payload: []byte("x"), Filename: "clip.ogg"})
	require.NoError(t, err)

	snap := waitTerminal(t, r, id)
	require.Equal(t, StatusError, snap.Status)
	require.Contains(t, snap.Error, "bad format")
	require.Empty(t, snap.Result)
}

func TestJob_PanicCapturedAsTerminalError(t *testing.T) {
	r := NewRegistry(&stubRunner{panics: true})

	id, err := r.Submit(Request{Payload: []byte("x"), Filename: "clip.wav"})
	require.NoError(t, err)

	snap := waitTerminal(t, r, id)
	require.Equal(t, StatusError, snap.Status)
	require.Contains(t, snap.Error, "internal error")
}

func TestPoll_UnknownIDReturnsNotFound(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "ok"})

	for range 3 {
		snap := r.Poll("no-such-job")
		require.Equal(t, StatusNotFound, snap.Status)
		require.Equal(t, "no-such-job", snap.ID)
		require.Empty(t, snap.Result)
		require.NotEmpty(t, snap.Error)
	}
	require.Equal(t, 0, r.Len(), "polling must not create records")
}

func TestPoll_StatusAndProgressMonotonic(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "ok", delay: 20 * time.Millisecond})

	id, err := r.Submit(Request{Payload: []byte("x"), Filename: "a.wav"})
	require.NoError(t, err)

	rank := map[Status]int{
		StatusQueued:     0,
		StatusProcessing: 1,
		StatusCompleted:  2,
		StatusError:      2,
	}

	lastRank := -1
	lastProgress := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := r.Poll(id)
		require.GreaterOrEqual(t, rank[snap.Status], lastRank, "status regressed")
		require.GreaterOrEqual(t, snap.Progress, lastProgress, "progress regressed")
		lastRank = rank[snap.Status]
		lastProgress = snap.Progress
		if snap.Status.IsTerminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, rank[StatusCompleted], lastRank)

	// Terminal state is frozen.
	final := r.Poll(id)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, final, r.Poll(id))
}

func TestSubmit_ConcurrentSubmissionsAreIndependent(t *testing.T) {
	// Each job's result embeds its own payload so cross-talk would show up.
	runner := RunnerFunc(func(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
		time.Sleep(time.Millisecond)
		if string(req.Payload) == "poison" {
			return "", errors.New("poisoned payload")
		}
		return "text:" + string(req.Payload), nil
	})
	r := NewRegistry(runner)

	const n = 100
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := fmt.Sprintf("clip-%03d", i)
			if i%10 == 0 {
				payload = "poison"
			}
			id, err := r.Submit(Request{Payload: []byte(payload), Filename: payload + ".wav"})
			require.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id under concurrent submission")
		seen[id] = true
	}

	for i, id := range ids {
		snap := waitTerminal(t, r, id)
		if i%10 == 0 {
			assert.Equal(t, StatusError, snap.Status)
			assert.Contains(t, snap.Error, "poisoned")
			assert.Empty(t, snap.Result)
		} else {
			assert.Equal(t, StatusCompleted, snap.Status)
			assert.Equal(t, fmt.Sprintf("text:clip-%03d", i), snap.Result)
			assert.Empty(t, snap.Error)
		}
	}
}

func TestRegistry_ConcurrencyGateKeepsJobsQueued(t *testing.T) {
	release := make(chan struct{})
	r := NewRegistry(&stubRunner{text: "ok", release: release}, WithConcurrency(1))

	first, err := r.Submit(Request{Payload: []byte("a"), Filename: "a.wav"})
	require.NoError(t, err)

	// Wait for the first worker to claim the only slot.
	require.Eventually(t, func() bool {
		return r.Poll(first).Status == StatusProcessing
	}, time.Second, time.Millisecond)

	second, err := r.Submit(Request{Payload: []byte("b"), Filename: "b.wav"})
	require.NoError(t, err, "Submit must not block on the gate")

	// The second job is observable but held back.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StatusQueued, r.Poll(second).Status)

	close(release)
	require.Equal(t, StatusCompleted, waitTerminal(t, r, first).Status)
	require.Equal(t, StatusCompleted, waitTerminal(t, r, second).Status)
}

func TestRegistry_PublishesTerminalEvents(t *testing.T) {
	events := event.NewManager()

	var mu sync.Mutex
	completed := []Snapshot{}
	failed := []Snapshot{}
	events.Subscribe(EventJobCompleted, func(ctx context.Context, data any) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, data.(Snapshot))
	})
	events.Subscribe(EventJobFailed, func(ctx context.Context, data any) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, data.(Snapshot))
	})

	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
		if req.Filename == "bad.wav" {
			return "", errors.New("no audio stream")
		}
		return "ok", nil
	}), WithEvents(events))

	good, err := r.Submit(Request{Payload: []byte("x"), Filename: "good.wav"})
	require.NoError(t, err)
	bad, err := r.Submit(Request{Payload: []byte("x"), Filename: "bad.wav"})
	require.NoError(t, err)

	waitTerminal(t, r, good)
	waitTerminal(t, r, bad)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 1 && len(failed) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, good, completed[0].ID)
	assert.Equal(t, bad, failed[0].ID)
}

func TestList_ReturnsSubmissionOrder(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "ok"})

	var ids []string
	for i := range 5 {
		id, err := r.Submit(Request{Payload: []byte("x"), Filename: fmt.Sprintf("f%d.wav", i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	snaps := r.List()
	require.Len(t, snaps, 5)
	for i, snap := range snaps {
		require.Equal(t, ids[i], snap.ID)
	}
}

func TestDrain_WaitsForInflightJobs(t *testing.T) {
	r := NewRegistry(&stubRunner{text: "ok", delay: 30 * time.Millisecond})

	id, err := r.Submit(Request{Payload: []byte("x"), Filename: "a.wav"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Drain(ctx))
	require.True(t, r.Poll(id).Status.IsTerminal())
}

func TestDrain_RespectsDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := NewRegistry(&stubRunner{text: "ok", release: release})

	_, err := r.Submit(Request{Payload: []byte("x"), Filename: "a.wav"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Drain(ctx), context.DeadlineExceeded)
}

func TestRegistry_NoRunnerFailsJob(t *testing.T) {
	r := NewRegistry(nil)

	id, err := r.Submit(Request{Payload: []byte("x"), Filename: "a.wav"})
	require.NoError(t, err)

	snap := waitTerminal(t, r, id)
	require.Equal(t, StatusError, snap.Status)
	require.Contains(t, snap.Error, "no transcription runner")
}
