package entity

import (
	"fmt"
	"sync"
	"testing"

	"FinFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *Resolver, e models.Entity) *models.Entity {
	t.Helper()
	got, err := r.Register(e)
	require.NoError(t, err)
	return got
}

func apple() models.Entity {
	return models.Entity{
		ID:          "apple",
		Type:        models.EntityCompany,
		Name:        "Apple Inc.",
		Aliases:     []string{"Apple Computer"},
		Tickers:     []string{"aapl"},
		Identifiers: []models.IdentifierKey{{Type: "CIK", Value: "0000320193"}},
	}
}

func TestResolve_EveryReferenceGivesSameID(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())

	for _, ref := range []string{"AAPL", "$aapl", "Apple Inc.", "apple", "APPLE COMPUTER", "Apple Computer, Inc."} {
		e, ok := r.Resolve(ref, nil)
		require.True(t, ok, ref)
		assert.Equal(t, "apple", e.ID, ref)
	}
	e, ok := r.ResolveIdentifier("cik", "0000320193")
	require.True(t, ok)
	assert.Equal(t, "apple", e.ID)
}

func TestResolve_FuzzyMatch(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())
	seed(t, r, models.Entity{ID: "nvda", Type: models.EntityCompany, Name: "NVIDIA Corporation", Tickers: []string{"NVDA"}})

	e, ok := r.Resolve("Aple Inc", nil)
	require.True(t, ok)
	assert.Equal(t, "apple", e.ID)

	e, ok = r.Resolve("Nvidea", nil)
	require.True(t, ok)
	assert.Equal(t, "nvda", e.ID)

	_, ok = r.Resolve("Microsoft", nil)
	assert.False(t, ok)
}

func TestResolve_ContextBoostsFuzzyScore(t *testing.T) {
	fixed := func(score float64) Similarity {
		return func(a, b string) float64 { return score }
	}
	company := &models.ResolveContext{EntityType: models.EntityCompany}
	financial := &models.ResolveContext{Domain: models.FinancialDomain}
	both := &models.ResolveContext{EntityType: models.EntityCompany, Domain: models.FinancialDomain}
	person := &models.ResolveContext{EntityType: models.EntityPerson}

	tests := []struct {
		name  string
		score float64
		rc    *models.ResolveContext
		want  bool
	}{
		{"at threshold", 0.80, nil, false},
		{"above threshold", 0.81, nil, true},
		{"type boost lifts", 0.76, company, true},
		{"type boost not enough", 0.75, company, false},
		{"domain boost lifts", 0.78, financial, true},
		{"domain boost not enough", 0.77, financial, false},
		{"both boosts", 0.73, both, true},
		{"wrong type gets no boost", 0.79, person, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(WithSimilarity(fixed(tt.score)))
			seed(t, r, apple())
			_, ok := r.Resolve("something else", tt.rc)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestResolve_RelationshipInference(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())
	seed(t, r, models.Entity{ID: "cook", Type: models.EntityPerson, Name: "Tim Cook"})
	seed(t, r, models.Entity{ID: "jobs", Type: models.EntityPerson, Name: "Steve Jobs"})
	require.NoError(t, r.AddRelationship("cook", "apple", "CEO"))
	require.NoError(t, r.AddRelationship("jobs", "apple", models.RelationFounder))

	e, ok := r.Resolve("CEO of Apple", nil)
	require.True(t, ok)
	assert.Equal(t, "cook", e.ID)

	e, ok = r.Resolve("the co-founder of AAPL", nil)
	require.True(t, ok)
	assert.Equal(t, "jobs", e.ID)

	_, ok = r.Resolve("CFO of Apple", nil)
	assert.False(t, ok)
	_, ok = r.Resolve("CEO of Zyxw Widgets", nil)
	assert.False(t, ok)
}

func TestRegister_RejectsAliasConflicts(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())

	_, err := r.Register(models.Entity{Type: models.EntityCompany, Name: "Apple Records", Tickers: []string{"AAPL"}})
	assert.ErrorIs(t, err, ErrAliasConflict)
	_, err = r.Register(models.Entity{Type: models.EntityCompany, Name: "APPLE, INC"})
	assert.ErrorIs(t, err, ErrAliasConflict)
	_, err = r.Register(models.Entity{Type: models.EntityCompany, Name: "Other", Identifiers: []models.IdentifierKey{{Type: "cik", Value: "0000320193"}}})
	assert.ErrorIs(t, err, ErrAliasConflict)
	_, err = r.Register(models.Entity{Type: "fund", Name: "Vanguard"})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 1, r.Len())

	e, err := r.Register(models.Entity{Type: models.EntityOrganization, Name: "SEC"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
}

func TestMerge_RepointsEverythingAndRemovesDropped(t *testing.T) {
	r := NewResolver()
	seed(t, r, models.Entity{ID: "goog", Type: models.EntityCompany, Name: "Alphabet Inc.", Tickers: []string{"GOOGL"},
		Identifiers: []models.IdentifierKey{{Type: "cik", Value: "0001652044"}}})
	seed(t, r, models.Entity{ID: "google", Type: models.EntityCompany, Name: "Google LLC", Aliases: []string{"Google"},
		Tickers: []string{"GOOG"}, Identifiers: []models.IdentifierKey{{Type: "lei", Value: "7ZW8QJWVPR4P1J1KQY45"}}, Confidence: 0.9})
	seed(t, r, models.Entity{ID: "pichai", Type: models.EntityPerson, Name: "Sundar Pichai"})
	require.NoError(t, r.AddRelationship("pichai", "google", models.RelationCEO))
	require.NoError(t, r.AddRelationship("goog", "google", models.RelationSubsidiary))

	merged, err := r.Merge("goog", "google")
	require.NoError(t, err)
	assert.Equal(t, 0.9, merged.Confidence)
	assert.ElementsMatch(t, []string{"GOOGL", "GOOG"}, merged.Tickers)
	assert.Empty(t, merged.Relationships, "self edge is dropped")

	for _, ref := range []string{"GOOG", "GOOGL", "Google", "Google LLC", "Alphabet"} {
		e, ok := r.Resolve(ref, nil)
		require.True(t, ok, ref)
		assert.Equal(t, "goog", e.ID, ref)
	}
	e, ok := r.ResolveIdentifier("lei", "7ZW8QJWVPR4P1J1KQY45")
	require.True(t, ok)
	assert.Equal(t, "goog", e.ID)

	_, ok = r.Get("google")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())

	r.mu.RLock()
	for _, idx := range []map[string]string{r.byName, r.byTicker} {
		for k, id := range idx {
			assert.NotEqual(t, "google", id, k)
		}
	}
	for k, id := range r.byIdent {
		assert.NotEqual(t, "google", id, k)
	}
	r.mu.RUnlock()

	ceo, ok := r.Resolve("CEO of Google", nil)
	require.True(t, ok)
	assert.Equal(t, "pichai", ceo.ID)
}

func TestMerge_Errors(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())
	_, err := r.Merge("apple", "apple")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = r.Merge("apple", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMerge_ConcurrentReadersNeverSeeDroppedID(t *testing.T) {
	r := NewResolver()
	for i := 0; i < 20; i++ {
		seed(t, r, models.Entity{ID: fmt.Sprintf("e%d", i), Type: models.EntityCompany,
			Name: fmt.Sprintf("Company %d", i), Tickers: []string{fmt.Sprintf("T%d", i)}})
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 1; i < 20; i++ {
					e, ok := r.Resolve(fmt.Sprintf("T%d", i), nil)
					if !ok {
						t.Errorf("T%d unresolved", i)
						return
					}
					if _, exists := r.Get(e.ID); !exists {
						// the id may have been merged away between the two calls,
						// but Resolve itself must never return a removed id
						if e2, ok2 := r.Resolve(fmt.Sprintf("T%d", i), nil); !ok2 || e2.ID == e.ID {
							t.Errorf("T%d resolves to removed id %s", i, e.ID)
							return
						}
					}
				}
			}
		}()
	}
	for i := 1; i < 20; i++ {
		_, err := r.Merge("e0", fmt.Sprintf("e%d", i))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	for i := 0; i < 20; i++ {
		e, ok := r.Resolve(fmt.Sprintf("T%d", i), nil)
		require.True(t, ok)
		assert.Equal(t, "e0", e.ID)
	}
}

func TestFindRelated_BoundedAndCycleSafe(t *testing.T) {
	r := NewResolver()
	for _, id := range []string{"a", "b", "c", "d"} {
		seed(t, r, models.Entity{ID: id, Type: models.EntityCompany, Name: "Company " + id})
	}
	require.NoError(t, r.AddRelationship("a", "b", models.RelationSubsidiary))
	require.NoError(t, r.AddRelationship("b", "c", models.RelationSubsidiary))
	require.NoError(t, r.AddRelationship("c", "a", models.RelationSubsidiary))
	require.NoError(t, r.AddRelationship("c", "d", "supplier"))

	got, err := r.FindRelated("a", nil, 10)
	require.NoError(t, err)
	ids := func(rs []RelatedEntity) []string {
		out := make([]string, len(rs))
		for i, x := range rs {
			out[i] = x.Entity.ID
		}
		return out
	}
	assert.Equal(t, []string{"b", "c", "d"}, ids(got))
	assert.Equal(t, 3, got[2].Depth)

	got, err = r.FindRelated("a", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = r.FindRelated("a", []string{models.RelationSubsidiary}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(got))

	_, err = r.FindRelated("zzz", nil, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := NewResolver()
	seed(t, r, apple())
	e, _ := r.Get("apple")
	e.Tickers[0] = "HACK"

	again, _ := r.Get("apple")
	assert.Equal(t, []string{"AAPL"}, again.Tickers)
}
