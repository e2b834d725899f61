package session

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

func TestPreviewLifecycle(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	if _, ok := store.GetPreview("s1"); ok {
		t.Fatal("fresh session should have no preview")
	}

	preview := &types.OrderPreview{PreviewID: "PRV-1", CreatedAt: time.Now()}
	err := store.WithSession("s1", func(s *Session) error {
		s.SetPreview(preview)
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession: %v", err)
	}

	got, ok := store.GetPreview("s1")
	if !ok || got.PreviewID != "PRV-1" {
		t.Fatalf("expected saved preview, got %v", got)
	}

	// A later preview supersedes the earlier one.
	_ = store.WithSession("s1", func(s *Session) error {
		s.SetPreview(&types.OrderPreview{PreviewID: "PRV-2"})
		return nil
	})
	got, _ = store.GetPreview("s1")
	if got.PreviewID != "PRV-2" {
		t.Errorf("later preview should win, got %s", got.PreviewID)
	}

	_ = store.WithSession("s1", func(s *Session) error {
		s.ClearPreview()
		return nil
	})
	if _, ok := store.GetPreview("s1"); ok {
		t.Error("cleared preview should be gone")
	}
}

func TestPendingPrescriptionLifecycle(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	_ = store.WithSession("s1", func(s *Session) error {
		s.SetPending(&types.PendingPrescription{PatientID: "P001", CreatedAt: time.Now()})
		return nil
	})

	pending, ok := store.GetPending("s1")
	if !ok {
		t.Fatal("expected pending prescription")
	}
	if pending.Uploaded || pending.Verified {
		t.Error("new pending prescription should be neither uploaded nor verified")
	}

	_ = store.WithSession("s1", func(s *Session) error {
		s.MarkUploaded(true)
		return nil
	})
	pending, _ = store.GetPending("s1")
	if !pending.Uploaded || !pending.Verified {
		t.Errorf("MarkUploaded should flag the snapshot: %+v", pending)
	}

	_ = store.WithSession("s1", func(s *Session) error {
		s.ClearPending()
		return nil
	})
	if _, ok := store.GetPending("s1"); ok {
		t.Error("cleared pending prescription should be gone")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	_ = store.WithSession("a", func(s *Session) error {
		s.SetPreview(&types.OrderPreview{PreviewID: "PRV-A"})
		return nil
	})

	if _, ok := store.GetPreview("b"); ok {
		t.Error("state must not leak across sessions")
	}
}

func TestExpiredStateBehavesAsAbsent(t *testing.T) {
	store := NewStore(20 * time.Millisecond)
	defer store.Close()

	_ = store.WithSession("s1", func(s *Session) error {
		s.SetPreview(&types.OrderPreview{PreviewID: "PRV-1"})
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	if _, ok := store.GetPreview("s1"); ok {
		t.Error("preview past the TTL should behave as absent")
	}
}

func TestWithSessionSerializesAccess(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithSession("shared", func(s *Session) error {
				v := counter
				runtime.Gosched()
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("lost updates under concurrency: got %d, want %d", counter, workers)
	}
}
