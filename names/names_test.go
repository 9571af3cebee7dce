package names

import (
	"fmt"
	"sync"
	"testing"
)

func TestStandardNamesArePinned(t *testing.T) {
	tab := NewTable()
	if got, ok := tab.Lookup(Type); !ok || got != "Type" {
		t.Fatalf("expected Type, got %q (%v)", got, ok)
	}
	if id := tab.Intern("Length"); id != Length {
		t.Fatalf("expected pinned Length id %d, got %d", Length, id)
	}
	tab.Release(Length)
	tab.Release(Length)
	if _, ok := tab.Lookup(Length); !ok {
		t.Fatalf("standard name freed by release")
	}
	if s, _ := tab.Lookup(IdentityH); s != "Identity-H" {
		t.Fatalf("expected Identity-H, got %q", s)
	}
	if s, _ := tab.Lookup(IDKey); s != "ID" {
		t.Fatalf("expected ID, got %q", s)
	}
}

func TestInternRoundTrip(t *testing.T) {
	tab := NewTable()
	seen := make(map[ID]string)
	for i := 0; i < 500; i++ {
		s := fmt.Sprintf("Name%d", i)
		id := tab.Intern(s)
		if again := tab.Intern(s); again != id {
			t.Fatalf("intern not stable for %q: %d vs %d", s, id, again)
		}
		if got, _ := tab.Lookup(id); got != s {
			t.Fatalf("lookup(intern(%q)) = %q", s, got)
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("id %d shared by %q and %q", id, prev, s)
		}
		seen[id] = s
	}
}

func TestReleaseFreesDynamicNames(t *testing.T) {
	tab := NewTable()
	id := tab.Intern("Custom")
	tab.Intern("Custom")
	if tab.Refs(id) != 2 {
		t.Fatalf("expected 2 refs, got %d", tab.Refs(id))
	}
	tab.Release(id)
	if _, ok := tab.Lookup(id); !ok {
		t.Fatalf("name freed while still referenced")
	}
	tab.Release(id)
	if _, ok := tab.Lookup(id); ok {
		t.Fatalf("name still live after last release")
	}
	if _, ok := tab.Find("Custom"); ok {
		t.Fatalf("released name still findable")
	}
	if reused := tab.Intern("Other"); reused != id {
		t.Fatalf("expected freed slot %d to be reused, got %d", id, reused)
	}
}

func TestScopeReleasesOnlyItsReferences(t *testing.T) {
	tab := NewTable()
	keep := tab.Intern("Shared")
	sc := NewScope(tab)
	sc.Intern("Shared")
	sc.Intern("Scoped")
	sc.Intern("Type")
	sc.ReleaseAll()
	if _, ok := tab.Lookup(keep); !ok {
		t.Fatalf("scope released a reference it did not own")
	}
	if _, ok := tab.Find("Scoped"); ok {
		t.Fatalf("scoped name should be freed")
	}
}

func TestConcurrentIntern(t *testing.T) {
	tab := NewTable()
	var wg sync.WaitGroup
	ids := make([][]ID, 8)
	for g := range ids {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ids[g] = append(ids[g], tab.Intern(fmt.Sprintf("n%d", i)))
			}
		}(g)
	}
	wg.Wait()
	for g := 1; g < len(ids); g++ {
		for i := range ids[g] {
			if ids[g][i] != ids[0][i] {
				t.Fatalf("goroutine %d got id %d for n%d, want %d", g, ids[g][i], i, ids[0][i])
			}
		}
	}
}
