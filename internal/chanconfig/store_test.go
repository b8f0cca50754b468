package chanconfig

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/flemzord/cronclaw/internal/agent"
)

func openTest(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(t.Context(), filepath.Join(t.TempDir(), "db", "channels.db"), opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Defaults(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{})
	ctx := t.Context()

	b, err := s.Backend(ctx, 1)
	if err != nil || b != agent.DefaultBackend {
		t.Errorf("Backend() = %q, %v; want default", b, err)
	}
	name, err := s.AssistantName(ctx, 1)
	if err != nil || name != DefaultAssistantName {
		t.Errorf("AssistantName() = %q, %v", name, err)
	}
	on, err := s.MentionOnly(ctx, 1)
	if err != nil || !on {
		t.Errorf("MentionOnly() = %v, %v; want true", on, err)
	}
	id, err := s.SessionID(ctx, 1)
	if err != nil || id != "" {
		t.Errorf("SessionID() = %q, %v", id, err)
	}
}

func TestStore_CustomDefaults(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{DefaultBackend: agent.BackendPi, DefaultAssistantName: "Claw"})
	if b, _ := s.Backend(t.Context(), 5); b != agent.BackendPi {
		t.Errorf("Backend() = %q, want pi", b)
	}
	if n, _ := s.AssistantName(t.Context(), 5); n != "Claw" {
		t.Errorf("AssistantName() = %q, want Claw", n)
	}
}

func TestStore_SetAndGet(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{})
	ctx := t.Context()
	const ch = 12345

	if err := s.SetBackend(ctx, ch, agent.BackendCopilot); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAssistantName(ctx, ch, "  Coder "); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSessionID(ctx, ch, "sess-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMentionOnly(ctx, ch, false); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, ch)
	if err != nil {
		t.Fatal(err)
	}
	want := Channel{ID: ch, Backend: "copilot", AssistantName: "Coder", SessionID: "sess-1", MentionOnly: false}
	got.UpdatedAt = ""
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if err := s.ClearSessionID(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if id, _ := s.SessionID(ctx, ch); id != "" {
		t.Errorf("SessionID() after clear = %q", id)
	}
	if b, _ := s.Backend(ctx, ch); b != agent.BackendCopilot {
		t.Error("ClearSessionID touched the backend")
	}

	if err := s.SetAssistantName(ctx, ch, ""); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.AssistantName(ctx, ch); n != DefaultAssistantName {
		t.Errorf("AssistantName() after reset = %q", n)
	}
}

func TestStore_SetBackendRejectsUnknown(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{})
	if err := s.SetBackend(t.Context(), 1, "gpt"); !errors.Is(err, agent.ErrUnknownBackend) {
		t.Errorf("SetBackend() error = %v, want ErrUnknownBackend", err)
	}
}

func TestStore_UnknownStoredBackendFallsBack(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{})
	if err := s.set(t.Context(), 1, "backend", "retired"); err != nil {
		t.Fatal(err)
	}
	b, err := s.Backend(t.Context(), 1)
	if !errors.Is(err, agent.ErrUnknownBackend) || b != agent.DefaultBackend {
		t.Errorf("Backend() = %q, %v", b, err)
	}
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	s := openTest(t, Options{})
	ctx := t.Context()
	for _, ch := range []uint64{300, 20, 1000} {
		if err := s.SetBackend(ctx, ch, agent.BackendPi); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != 20 || list[1].ID != 300 || list[2].ID != 1000 {
		t.Errorf("List() = %+v", list)
	}
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "channels.db")
	s, err := Open(t.Context(), path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBackend(t.Context(), 7, agent.BackendOpencode); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := Open(t.Context(), path, Options{})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()
	if b, _ := s2.Backend(t.Context(), 7); b != agent.BackendOpencode {
		t.Errorf("Backend() after reopen = %q", b)
	}
}
