package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestManagerStart(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	j, ok := m.Start("/clips/a.mp4")
	if !ok {
		t.Fatal("Start returned not-ok for new job")
	}
	if j == nil {
		t.Fatal("Start returned nil")
	}
	if j.Key != "/clips/a.mp4" {
		t.Errorf("key: got %q, want %q", j.Key, "/clips/a.mp4")
	}
	if j.StartedAt.IsZero() {
		t.Error("StartedAt should not be zero")
	}
	if _, err := uuid.Parse(j.TraceID); err != nil {
		t.Errorf("TraceID %q: %v", j.TraceID, err)
	}
	other, _ := m.Start("/clips/b.mp4")
	if other.TraceID == j.TraceID {
		t.Error("jobs share a TraceID")
	}

	active := m.Active()
	if len(active) != 2 || active[0].Key != "/clips/a.mp4" || active[1].Key != "/clips/b.mp4" {
		t.Errorf("Active should return both jobs ordered by key, got %d", len(active))
	}
}

func TestManagerStartDuplicate(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	if _, ok := m.Start("a.mp4"); !ok {
		t.Fatal("first Start should succeed")
	}
	j2, ok2 := m.Start("a.mp4")
	if ok2 {
		t.Error("duplicate Start should return false")
	}
	if j2 != nil {
		t.Error("duplicate Start should return nil job")
	}

	m.Finish("a.mp4", 3, nil)
	if _, ok := m.Start("a.mp4"); ok {
		t.Error("Start after Finish should still reject the duplicate")
	}
}

func TestManagerFinish(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	m.Start("a.mp4")
	m.Start("b.mp4")
	failure := errors.New("no metadata track")

	m.Finish("b.mp4", 0, failure)
	m.Finish("a.mp4", 42, nil)

	if len(m.Active()) != 0 {
		t.Errorf("active after finish: got %d, want 0", len(m.Active()))
	}

	finished := m.Finished()
	if len(finished) != 2 {
		t.Fatalf("expected 2 finished jobs, got %d", len(finished))
	}
	if finished[0].Key != "a.mp4" || finished[0].Points != 42 || finished[0].Err != nil {
		t.Errorf("finished[0] = %+v", finished[0])
	}
	if finished[1].Key != "b.mp4" || !errors.Is(finished[1].Err, failure) {
		t.Errorf("finished[1] = %+v", finished[1])
	}
	if finished[0].FinishedAt.Before(finished[0].StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
	if m.Failed() != 1 {
		t.Errorf("Failed = %d, want 1", m.Failed())
	}
}

func TestManagerFinishUnknown(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	// Should not panic
	m.Finish("nonexistent", 1, nil)
	if len(m.Finished()) != 0 {
		t.Error("unknown key recorded as finished")
	}
}

func TestManagerConcurrent(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Start(k); ok {
				m.Finish(k, i, nil)
			}
		}()
	}
	wg.Wait()

	if got := len(m.Finished()); got != len(keys) {
		t.Errorf("finished = %d, want %d", got, len(keys))
	}
}
