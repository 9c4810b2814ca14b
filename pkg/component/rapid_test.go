package component_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/matzehuels/compgraph/pkg/cache"
	"github.com/matzehuels/compgraph/pkg/component"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/store/memory"
)

// TestChildListMatchesModel drives random add/remove/save/evict sequences and
// checks that the observable child list always equals a plain slice model,
// regardless of what the cache currently holds.
func TestChildListMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		mc := cache.NewMemoryCache(time.Minute, time.Minute)
		g := component.New(memory.New(), component.Options{IDs: identity.NewSequence("n"), Cache: mc})

		parent, err := g.Create(ctx, "folder", "")
		if err != nil {
			t.Fatal(err)
		}
		pool := make([]*component.Node, rapid.IntRange(1, 6).Draw(t, "pool"))
		for i := range pool {
			if pool[i], err = g.Create(ctx, "note", ""); err != nil {
				t.Fatal(err)
			}
		}
		var model []string

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for range steps {
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				c := rapid.SampledFrom(pool).Draw(t, "child")
				idx := rapid.IntRange(-1, len(model)+1).Draw(t, "index")
				if err := parent.AddChildren(ctx, idx, c); err != nil {
					t.Fatal(err)
				}
				model = modelInsert(model, idx, c.ID())
			case 1:
				c := rapid.SampledFrom(pool).Draw(t, "child")
				if err := parent.RemoveChildren(ctx, c); err != nil {
					t.Fatal(err)
				}
				model = slices.DeleteFunc(model, func(id string) bool { return id == c.ID() })
			case 2:
				if err := parent.Save(ctx); err != nil {
					t.Fatal(err)
				}
			case 3:
				if err := parent.EvictChildren(ctx); err != nil {
					t.Fatal(err)
				}
			case 4:
				mc.Flush()
			}

			got, err := parent.ChildIDs(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, model) && !(len(got) == 0 && len(model) == 0) {
				t.Fatalf("children = %v, model = %v", got, model)
			}
		}
	})
}

// modelInsert places id in front of the first other entry found at or after
// index in list, or at the end when there is none.
func modelInsert(list []string, index int, id string) []string {
	anchor := -1
	if index >= 0 {
		for i := index; i < len(list); i++ {
			if list[i] != id {
				anchor = i
				break
			}
		}
	}
	var out []string
	placed := false
	for i, existing := range list {
		if i == anchor {
			out = append(out, id)
			placed = true
		}
		if existing != id {
			out = append(out, existing)
		}
	}
	if !placed {
		out = append(out, id)
	}
	return out
}
