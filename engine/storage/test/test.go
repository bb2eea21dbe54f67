// Package test runs conformance tests against session status storage backends.
package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaypro/relay-go/engine/storage"
)

// TestStorage runs the session status conformance tests.
// Ids are prefixed so that runs can share a database.
func TestStorage(t *testing.T, newStorage func() storage.Storage) {
	s := newStorage()
	ctx := context.Background()

	prefix := time.Now().Format("150405.000000") + "-"
	base := time.Now().UTC().Truncate(time.Second)

	_, err := s.RetrieveSession(ctx, prefix+"missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want ErrNotFound, have: %v", err)
	}

	for i, st := range []*storage.Status{
		{ID: prefix + "a", Workflow: prefix + "hello", Trigger: "phrase", SourceURI: "urn:relay-resource:name:device:Bob", Started: base},
		{ID: prefix + "b", Workflow: prefix + "hello", Started: base.Add(time.Second)},
		{ID: prefix + "c", Workflow: prefix + "timers", Started: base.Add(2 * time.Second)},
	} {
		if err = s.RecordSessionStarted(ctx, st); err != nil {
			t.Fatalf("record start %d: %v", i, err)
		}
	}

	st, err := s.RetrieveSession(ctx, prefix+"a")
	if err != nil {
		t.Fatal(err)
	}
	if have, want := st.SourceURI, "urn:relay-resource:name:device:Bob"; have != want {
		t.Errorf("source uri: have: %v, want: %v", have, want)
	}
	if have, want := st.Trigger, "phrase"; have != want {
		t.Errorf("trigger: have: %v, want: %v", have, want)
	}
	if !st.Started.Equal(base) {
		t.Errorf("started: have: %v, want: %v", st.Started, base)
	}
	if st.Stopped != nil {
		t.Error("expected running session")
	}

	stopped := base.Add(time.Minute)
	if err = s.RecordSessionStopped(ctx, prefix+"a", "normal", stopped); err != nil {
		t.Fatal(err)
	}
	if err = s.RecordSessionStopped(ctx, prefix+"missing", "normal", stopped); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stop unknown: want ErrNotFound, have: %v", err)
	}

	st, err = s.RetrieveSession(ctx, prefix+"a")
	if err != nil {
		t.Fatal(err)
	}
	if st.Stopped == nil {
		t.Fatal("expected stopped session")
	}
	if !st.Stopped.Equal(stopped) {
		t.Errorf("stopped: have: %v, want: %v", st.Stopped, stopped)
	}
	if have, want := st.Reason, "normal"; have != want {
		t.Errorf("reason: have: %v, want: %v", have, want)
	}

	statuses, err := s.RetrieveSessions(ctx, &storage.SearchOptions{Workflow: prefix + "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if have, want := len(statuses), 2; have != want {
		t.Fatalf("count: have: %v, want: %v", have, want)
	}
	if have, want := statuses[0].ID, prefix+"b"; have != want {
		t.Errorf("most recent first: have: %v, want: %v", have, want)
	}

	statuses, err = s.RetrieveSessions(ctx, &storage.SearchOptions{Workflow: prefix + "hello", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if have, want := len(statuses), 1; have != want {
		t.Errorf("limited count: have: %v, want: %v", have, want)
	}
}
