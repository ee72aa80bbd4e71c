package pending

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCreate_UniqueIDs(t *testing.T) {
	s := NewStore(0)

	const n = 10000
	seen := make(map[string]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Create("https://app.example", "storeData", nil)
			mu.Lock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("got %d unique ids, want %d", len(seen), n)
	}
	if s.Len() != n {
		t.Errorf("store holds %d records, want %d", s.Len(), n)
	}
}

func TestResolveThenAwait_ReturnsResultOnce(t *testing.T) {
	s := NewStore(time.Second)
	id := s.Create("https://app.example", "storeData", nil)

	want := json.RawMessage(`{"success":true,"collection":"c1"}`)
	if !s.Resolve(id, true, want) {
		t.Fatal("Resolve reported unknown id")
	}

	got, err := s.Await(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Await = %s, want %s", got, want)
	}

	// The record is consumed; a second Await must fail.
	if _, err := s.Await(context.Background(), id, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Await: got %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("store still holds %d records", s.Len())
	}
}

func TestAwait_DefaultSuccessMarker(t *testing.T) {
	s := NewStore(time.Second)
	id := s.Create("https://app.example", "connect", nil)
	s.Resolve(id, true, nil)

	got, err := s.Await(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	var r struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(got, &r); err != nil || !r.Success {
		t.Errorf("default marker = %s", got)
	}
}

func TestAwait_Rejected(t *testing.T) {
	s := NewStore(time.Second)
	id := s.Create("https://app.example", "storeData", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Resolve(id, false, json.RawMessage(`{"ignored":true}`))
	}()

	if _, err := s.Await(context.Background(), id, 0); !errors.Is(err, ErrRejected) {
		t.Errorf("Await: got %v, want ErrRejected", err)
	}
	if s.Len() != 0 {
		t.Error("rejected record not purged")
	}
}

func TestAwait_Timeout_PurgesRecord(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	id := s.Create("https://app.example", "storeData", nil)

	start := time.Now()
	_, err := s.Await(context.Background(), id, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await: got %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Await returned after %v, before the window", elapsed)
	}

	if _, ok := s.Get(id); ok {
		t.Error("timed-out record still present")
	}
}

func TestAwait_UnknownID(t *testing.T) {
	s := NewStore(time.Second)
	if _, err := s.Await(context.Background(), "nope", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAwait_ContextCancel(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create("https://app.example", "storeData", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := s.Await(ctx, id, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if s.Len() != 0 {
		t.Error("canceled record not purged")
	}
}

func TestResolve_LastWriteWins(t *testing.T) {
	s := NewStore(time.Second)
	id := s.Create("https://app.example", "storeData", nil)

	s.Resolve(id, false, nil)
	s.Resolve(id, true, json.RawMessage(`{"success":true,"second":true}`))

	got, err := s.Await(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Await after double resolve: %v", err)
	}
	var r struct {
		Second bool `json:"second"`
	}
	if err := json.Unmarshal(got, &r); err != nil || !r.Second {
		t.Errorf("expected the second decision to win, got %s", got)
	}
}

func TestResolve_UnknownID(t *testing.T) {
	s := NewStore(time.Second)
	if s.Resolve("nope", true, nil) {
		t.Error("Resolve of unknown id reported success")
	}
}

func TestResolve_RejectionIgnoresResult(t *testing.T) {
	s := NewStore(time.Second)
	id := s.Create("https://app.example", "grantAccess", nil)
	s.Resolve(id, false, json.RawMessage(`{"should":"be ignored"}`))

	_, err := s.Await(context.Background(), id, 0)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
}

func TestGetAndList(t *testing.T) {
	s := NewStore(time.Second)
	payload := json.RawMessage(`{"collection":"c1"}`)
	id := s.Create("https://app.example", "storeData", payload)

	view, ok := s.Get(id)
	if !ok {
		t.Fatal("Get missed a live record")
	}
	if view.Origin != "https://app.example" || view.Action != "storeData" {
		t.Errorf("unexpected view: %+v", view)
	}
	if string(view.Data) != string(payload) {
		t.Errorf("payload = %s, want %s", view.Data, payload)
	}

	if got := s.List(); len(got) != 1 || got[0].ID != id {
		t.Errorf("List = %+v", got)
	}
}

func TestConcurrentAwaiters_DistinctIDs(t *testing.T) {
	s := NewStore(time.Second)

	const n = 50
	ids := make([]string, n)
	for i := range ids {
		ids[i] = s.Create("https://app.example", "listData", nil)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			got, err := s.Await(context.Background(), id, 0)
			if err != nil {
				t.Errorf("Await(%s): %v", id, err)
				return
			}
			var r struct {
				Idx int `json:"idx"`
			}
			if err := json.Unmarshal(got, &r); err != nil || r.Idx != i {
				t.Errorf("waiter %d got result %s", i, got)
			}
		}(i, id)
	}

	for i, id := range ids {
		res, _ := json.Marshal(map[string]any{"success": true, "idx": i})
		s.Resolve(id, true, res)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("store still holds %d records", s.Len())
	}
}
