package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestRegistry_FindByAlias(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&RmCmd{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cmd, ok := r.Find("delete")
	if !ok {
		t.Fatal("expected alias to resolve")
	}
	if cmd.Name() != "rm" {
		t.Errorf("expected rm, got %q", cmd.Name())
	}
	if _, ok := r.Find("remove"); ok {
		t.Error("expected unknown name to miss")
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&RmCmd{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&RmCmd{}); err == nil {
		t.Error("expected duplicate name to fail")
	}
}

func TestRegistry_AllSortedWithoutAliases(t *testing.T) {
	r := NewRegistry()
	for _, c := range []Command{&ShowCmd{}, &AddCmd{}, &RmCmd{}} {
		if err := r.Register(c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	var names []string
	for _, c := range r.All() {
		names = append(names, c.Name())
	}
	if got := strings.Join(names, ","); got != "add,rm,show" {
		t.Errorf("expected add,rm,show, got %s", got)
	}
}

func TestRegistry_WriteUsage(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&RmCmd{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var buf bytes.Buffer
	r.WriteUsage(&buf)

	if !strings.HasPrefix(buf.String(), "  tasky rm ") {
		t.Errorf("expected usage line first, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "(alias: delete)") {
		t.Errorf("expected alias in usage, got %q", buf.String())
	}
}
