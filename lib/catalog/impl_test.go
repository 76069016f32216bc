package catalog

import (
	"errors"
	"sort"
	"sync/atomic"
	"testing"
)

// stubConnectors resolves everything except the connector type "broken"
type stubConnectors struct{}

func (stubConnectors) Resolve(mapping Mapping) (Table, error) {
	if mapping.Connector == "broken" {
		return Table{}, errors.New("unknown connector")
	}
	return Table{Mapping: mapping, Fields: []string{"__key", "this"}}, nil
}

type countingListener struct {
	calls atomic.Int32
}

func (l *countingListener) OnTableChanged() {
	l.calls.Add(1)
}

func mapping(name string) Mapping {
	return Mapping{Name: name, ExternalName: name, Connector: "imap"}
}

func TestCreateMappingSemantics(t *testing.T) {
	tests := []struct {
		name        string
		replace     bool
		ifNotExists bool
		wantErr     bool
	}{
		{name: "plain create fails on duplicate", wantErr: true},
		{name: "replace overwrites", replace: true},
		{name: "if not exists is silent", ifNotExists: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTableResolver(stubConnectors{})
			if err := r.CreateMapping(mapping("orders"), false, false); err != nil {
				t.Fatalf("first create failed: %v", err)
			}

			err := r.CreateMapping(mapping("orders"), tt.replace, tt.ifNotExists)
			if tt.wantErr && err == nil {
				t.Error("expected an error for the duplicate mapping")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got := len(r.MappingNames()); got != 1 {
				t.Errorf("expected 1 mapping, got %d", got)
			}
		})
	}
}

func TestCreateMappingValidation(t *testing.T) {
	r := NewTableResolver(stubConnectors{})

	if err := r.CreateMapping(Mapping{}, false, false); err == nil {
		t.Error("expected an error for an empty mapping name")
	}
	if err := r.CreateMapping(Mapping{Name: "bad", Connector: "broken"}, false, false); err == nil {
		t.Error("expected an error from the connector resolver")
	}
	if got := len(r.MappingNames()); got != 0 {
		t.Errorf("rejected mappings were stored: %d", got)
	}
}

func TestRemoveMapping(t *testing.T) {
	r := NewTableResolver(stubConnectors{})
	if err := r.CreateMapping(mapping("orders"), false, false); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := r.RemoveMapping("orders", false); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := r.RemoveMapping("orders", false); err == nil {
		t.Error("expected an error removing a missing mapping")
	}
	if err := r.RemoveMapping("orders", true); err != nil {
		t.Errorf("remove with ifExists failed: %v", err)
	}
}

func TestMappingNamesAndTables(t *testing.T) {
	r := NewTableResolver(stubConnectors{})
	for _, name := range []string{"orders", "customers", "events"} {
		if err := r.CreateMapping(mapping(name), false, false); err != nil {
			t.Fatalf("create %q failed: %v", name, err)
		}
	}

	names := r.MappingNames()
	sort.Strings(names)
	want := []string{"customers", "events", "orders"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: got %q, want %q", i, names[i], want[i])
		}
	}

	for _, table := range r.Tables() {
		if len(table.Fields) == 0 {
			t.Errorf("table %q has no resolved fields", table.Mapping.Name)
		}
	}
}

func TestListenersFireOnEveryChange(t *testing.T) {
	r := NewTableResolver(stubConnectors{})
	var l countingListener
	r.RegisterListener(&l)

	if err := r.CreateMapping(mapping("orders"), false, false); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := r.RemoveMapping("orders", false); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if got := l.calls.Load(); got != 2 {
		t.Errorf("listener fired %d times, expected 2", got)
	}

	// failed operations must not notify
	_ = r.CreateMapping(Mapping{Name: "bad", Connector: "broken"}, false, false)
	_ = r.RemoveMapping("missing", false)
	if got := l.calls.Load(); got != 2 {
		t.Errorf("listener fired on failed operations: %d", got)
	}
}
