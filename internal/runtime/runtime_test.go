package runtime

import (
	"testing"

	"github.com/soulwire/soulwire/internal/config"
	"github.com/soulwire/soulwire/internal/subagent"
)

func TestNewRuntimePopulatesBundle(t *testing.T) {
	r := New(&config.Config{}, nil, Session{ID: "s1", WorkDir: "/work"}, true)
	if r.Session.ID != "s1" {
		t.Fatalf("got session %+v", r.Session)
	}
	if r.BuiltinArgs.WorkDir != "/work" {
		t.Fatalf("got builtin args %+v", r.BuiltinArgs)
	}
	if r.TimeTravel == nil || r.Approval == nil || r.LaborMarket == nil {
		t.Fatal("expected every collaborator to be initialized")
	}
}

func TestDeriveFixedSubagentGetsPrivateLaborMarket(t *testing.T) {
	r := New(&config.Config{}, nil, Session{ID: "parent"}, true)
	r.LaborMarket.Register(subagent.Spec{Name: "shared-base"})

	nested := r.Derive(Session{ID: "nested"}, false)
	nested.LaborMarket.Register(subagent.Spec{Name: "only-in-nested"})

	if _, ok := r.LaborMarket.Lookup("only-in-nested"); ok {
		t.Fatal("fixed sub-agent's registration leaked back into the parent market")
	}
	if nested.TimeTravel == r.TimeTravel {
		t.Fatal("expected the nested runtime to get its own time-travel control")
	}
}

func TestDeriveDynamicSubagentSharesLaborMarket(t *testing.T) {
	r := New(&config.Config{}, nil, Session{ID: "parent"}, true)

	nested := r.Derive(Session{ID: "nested"}, true)
	nested.LaborMarket.Register(subagent.Spec{Name: "registered-by-nested"})

	if _, ok := r.LaborMarket.Lookup("registered-by-nested"); !ok {
		t.Fatal("expected a dynamic sub-agent's registration to be visible to the parent")
	}
}
