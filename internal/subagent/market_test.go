package subagent

import "testing"

func TestLaborMarketRegisterAndLookup(t *testing.T) {
	m := NewLaborMarket()
	m.Register(Spec{Name: "researcher", SystemPrompt: "You research things."})

	spec, ok := m.Lookup("researcher")
	if !ok {
		t.Fatal("expected researcher to be registered")
	}
	if spec.SystemPrompt != "You research things." {
		t.Fatalf("unexpected system prompt: %q", spec.SystemPrompt)
	}

	if _, ok := m.Lookup("nope"); ok {
		t.Fatal("expected lookup of an unregistered name to fail")
	}
}

func TestLaborMarketForkIsIndependent(t *testing.T) {
	m := NewLaborMarket()
	m.Register(Spec{Name: "base", SystemPrompt: "shared"})

	fork := m.Fork()
	fork.Register(Spec{Name: "only-in-fork", SystemPrompt: "private"})

	if _, ok := m.Lookup("only-in-fork"); ok {
		t.Fatal("fork registration leaked back into the original market")
	}
	if _, ok := fork.Lookup("base"); !ok {
		t.Fatal("fork should have inherited the original's entries at fork time")
	}
}
