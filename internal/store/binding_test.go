package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBindingRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	b := &Binding{
		ID:           "b1",
		Gesture:      "one_hand_tap",
		Interactable: "island",
		PluginName:   "keyboard",
		ActionName:   "press",
		Config:       json.RawMessage(`{"key":"space"}`),
		Enabled:      true,
	}
	if err := repo.Create(b); err != nil {
		t.Fatalf("failed to create binding: %v", err)
	}
	if b.State != DefaultState {
		t.Errorf("State = %q, want %q", b.State, DefaultState)
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("b1")
	if err != nil {
		t.Fatalf("failed to get binding: %v", err)
	}
	if got.Gesture != "one_hand_tap" || got.Keyword != "" || got.Interactable != "island" {
		t.Errorf("command mismatch: %+v", got)
	}
	if string(got.Config) != `{"key":"space"}` {
		t.Errorf("config mismatch: %s", got.Config)
	}
	if !got.Enabled {
		t.Error("binding should be enabled")
	}

	got.Enabled = false
	got.ActionName = "release"
	if err := repo.Update(got); err != nil {
		t.Fatalf("failed to update binding: %v", err)
	}

	updated, err := repo.GetByID("b1")
	if err != nil {
		t.Fatalf("failed to get binding: %v", err)
	}
	if updated.Enabled || updated.ActionName != "release" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := repo.Delete("b1"); err != nil {
		t.Fatalf("failed to delete binding: %v", err)
	}
	if _, err := repo.GetByID("b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBindingRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
	if err := repo.Update(&Binding{ID: "missing", PluginName: "p", ActionName: "a"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestBindingRepository_ListEnabled(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	rows := []*Binding{
		{ID: "a", Gesture: "one_hand_tap", PluginName: "p", ActionName: "x", Enabled: true},
		{ID: "b", Gesture: "two_hand_tap", PluginName: "p", ActionName: "y", Enabled: false},
		{ID: "c", Gesture: "one_hand_double_tap", PluginName: "p", ActionName: "z", Enabled: true},
	}
	for _, b := range rows {
		if err := repo.Create(b); err != nil {
			t.Fatalf("failed to create binding %s: %v", b.ID, err)
		}
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bindings, got %d", len(all))
	}

	enabled, err := repo.ListEnabled()
	if err != nil {
		t.Fatalf("failed to list enabled: %v", err)
	}
	if len(enabled) != 2 || enabled[0].ID != "a" || enabled[1].ID != "c" {
		t.Errorf("unexpected enabled bindings: %+v", enabled)
	}
	if string(enabled[0].Config) != "{}" {
		t.Errorf("default config = %s, want {}", enabled[0].Config)
	}
}

func TestBindingRepository_DuplicateCommand(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	first := &Binding{ID: "a", Gesture: "one_hand_tap", PluginName: "p", ActionName: "x"}
	if err := repo.Create(first); err != nil {
		t.Fatalf("failed to create binding: %v", err)
	}

	dup := &Binding{ID: "b", Gesture: "one_hand_tap", PluginName: "q", ActionName: "y"}
	if err := repo.Create(dup); err == nil {
		t.Error("expected error for duplicate command in the same state")
	}

	other := &Binding{ID: "c", State: "edit", Gesture: "one_hand_tap", PluginName: "q", ActionName: "y"}
	if err := repo.Create(other); err != nil {
		t.Errorf("same command in another state should be allowed: %v", err)
	}
}

func TestBindingRepository_NullConfig(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	b := &Binding{ID: "n", Gesture: "one_hand_tap", PluginName: "p", ActionName: "x", Config: json.RawMessage("null")}
	if err := repo.Create(b); err != nil {
		t.Fatalf("failed to create binding: %v", err)
	}
	got, err := repo.GetByID("n")
	if err != nil {
		t.Fatalf("failed to get binding: %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("null config stored as %s, want {}", got.Config)
	}

	got.Config = json.RawMessage(" null ")
	if err := repo.Update(got); err != nil {
		t.Fatalf("failed to update binding: %v", err)
	}
	got, _ = repo.GetByID("n")
	if string(got.Config) != "{}" {
		t.Errorf("null config updated to %s, want {}", got.Config)
	}
}
