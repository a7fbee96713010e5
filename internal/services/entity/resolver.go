package entity

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/pkg/logger"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/google/uuid"
)

const (
	// FuzzyThreshold is the similarity a fuzzy candidate must exceed.
	FuzzyThreshold = 0.8
	// TypeBoost is added when the candidate's type matches the context type.
	TypeBoost = 0.05
	// FinancialDomainBoost is added when the text came from a financial source.
	FinancialDomainBoost = 0.03
)

var (
	ErrNotFound      = errors.New("entity: not found")
	ErrAliasConflict = errors.New("entity: alias already belongs to another entity")
	ErrInvalid       = errors.New("entity: invalid entity")
)

// roleOf matches "CEO of Apple", "the chairman of Berkshire Hathaway".
var roleOf = regexp.MustCompile(`(?i)\b(ceo|cfo|founder|co-founder|chairman|chairwoman|board member|director) of (.+)$`)

var roleKinds = map[string]string{
	"ceo":          models.RelationCEO,
	"cfo":          models.RelationCFO,
	"founder":      models.RelationFounder,
	"co-founder":   models.RelationFounder,
	"chairman":     models.RelationChairman,
	"chairwoman":   models.RelationChairman,
	"board member": models.RelationBoardMember,
	"director":     models.RelationBoardMember,
}

// Similarity scores two normalized names in [0,1].
type Similarity func(a, b string) float64

// JaroWinkler is the default Similarity.
func JaroWinkler(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

// Resolver maps free text, tickers and identifiers onto canonical entities.
// Every index lives under one RWMutex so a merge is observed all at once.
type Resolver struct {
	mu       sync.RWMutex
	entities map[string]*models.Entity
	byName   map[string]string
	byTicker map[string]string
	byIdent  map[models.IdentifierKey]string

	similarity Similarity
	now        func() time.Time
	l          *logger.Logger
}

// Option configures Resolver.
type Option func(*Resolver)

func WithSimilarity(fn Similarity) Option { return func(r *Resolver) { r.similarity = fn } }

func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

func WithLogger(l *logger.Logger) Option { return func(r *Resolver) { r.l = l } }

// NewResolver creates an empty resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		entities:   make(map[string]*models.Entity),
		byName:     make(map[string]string),
		byTicker:   make(map[string]string),
		byIdent:    make(map[models.IdentifierKey]string),
		similarity: JaroWinkler,
		now:        time.Now,
		l:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.l = r.l.Component("entity_resolver")
	return r
}

// Register adds e and indexes its name, aliases, tickers and identifiers.
// An empty ID is assigned a UUID. Any key already owned by another entity
// rejects the whole registration.
func (r *Resolver) Register(e models.Entity) (*models.Entity, error) {
	if strings.TrimSpace(e.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("%w: type %q", ErrInvalid, e.Type)
	}
	ent := e.Clone()
	if ent.ID == "" {
		ent.ID = uuid.NewString()
	}
	ent.Tickers = uniqueTickers(ent.Tickers)
	ent.Aliases = uniqueStrings(ent.Aliases)
	ent.Identifiers = uniqueIdents(ent.Identifiers)
	ent.UpdatedAt = r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[ent.ID]; exists {
		return nil, fmt.Errorf("%w: id %s", ErrAliasConflict, ent.ID)
	}
	if err := r.checkFree(ent, ""); err != nil {
		return nil, err
	}
	for _, rel := range ent.Relationships {
		if _, ok := r.entities[rel.TargetID]; !ok && rel.TargetID != ent.ID {
			return nil, fmt.Errorf("relationship to %s: %w", rel.TargetID, ErrNotFound)
		}
	}
	r.entities[ent.ID] = ent
	r.index(ent)
	return ent.Clone(), nil
}

// Get returns a copy of the entity with id.
func (r *Resolver) Get(id string) (*models.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Len returns the number of canonical entities.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// ResolveIdentifier looks up an external identifier such as ("cik", "0000320193").
func (r *Resolver) ResolveIdentifier(idType, value string) (*models.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdent[identKey(idType, value)]
	if !ok {
		return nil, false
	}
	return r.entities[id].Clone(), true
}

// Resolve tries, in order: exact ticker, exact normalized name, fuzzy name
// match and relationship inference. rc may be nil. Not finding anything is a
// normal outcome.
func (r *Resolver) Resolve(text string, rc *models.ResolveContext) (*models.Entity, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.resolveDirect(text, rc); ok {
		return r.entities[id].Clone(), true
	}
	if id, ok := r.inferFromRelationship(text); ok {
		return r.entities[id].Clone(), true
	}
	return nil, false
}

// resolveDirect runs the ticker, name and fuzzy steps. Caller holds mu.
func (r *Resolver) resolveDirect(text string, rc *models.ResolveContext) (string, bool) {
	if id, ok := r.byTicker[normalizeTicker(text)]; ok {
		return id, true
	}
	norm := Normalize(text)
	if norm == "" {
		return "", false
	}
	if id, ok := r.byName[norm]; ok {
		return id, true
	}
	return r.fuzzy(norm, rc)
}

// fuzzy picks the best-scoring known name above FuzzyThreshold. Ties go to
// the lexically smaller name so the answer does not depend on map order.
func (r *Resolver) fuzzy(norm string, rc *models.ResolveContext) (string, bool) {
	bestID, bestName, bestScore := "", "", 0.0
	for name, id := range r.byName {
		score := r.similarity(norm, name)
		if rc != nil {
			if rc.EntityType != "" && r.entities[id].Type == rc.EntityType {
				score += TypeBoost
			}
			if strings.EqualFold(rc.Domain, models.FinancialDomain) {
				score += FinancialDomainBoost
			}
		}
		if score > bestScore || (score == bestScore && name < bestName) {
			bestID, bestName, bestScore = id, name, score
		}
	}
	if bestScore > FuzzyThreshold {
		return bestID, true
	}
	return "", false
}

// inferFromRelationship handles "CEO of X": X is resolved first, then the
// person holding that role towards X is returned. Caller holds mu.
func (r *Resolver) inferFromRelationship(text string) (string, bool) {
	m := roleOf.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	kind := roleKinds[strings.ToLower(m[1])]
	targetID, ok := r.resolveDirect(m[2], nil)
	if !ok {
		return "", false
	}

	var holders []string
	for id, e := range r.entities {
		if e.Type != models.EntityPerson {
			continue
		}
		for _, rel := range e.Relationships {
			if rel.TargetID == targetID && rel.Kind == kind {
				holders = append(holders, id)
				break
			}
		}
	}
	if len(holders) == 0 {
		return "", false
	}
	sort.Strings(holders)
	return holders[0], true
}

// AddRelationship adds a directed edge from -> to. Duplicates are ignored.
func (r *Resolver) AddRelationship(from, to, kind string) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return fmt.Errorf("%w: relationship kind required", ErrInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.entities[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, ErrNotFound)
	}
	if _, ok := r.entities[to]; !ok {
		return fmt.Errorf("%s: %w", to, ErrNotFound)
	}
	rel := models.Relationship{TargetID: to, Kind: kind}
	for _, existing := range src.Relationships {
		if existing == rel {
			return nil
		}
	}
	src.Relationships = append(src.Relationships, rel)
	src.UpdatedAt = r.now()
	return nil
}

// Merge folds drop into keep: names, tickers, identifiers and relationships
// move over, every index entry is repointed, edges that targeted drop now
// target keep, and drop disappears. Readers see either the state before or
// the state after.
func (r *Resolver) Merge(keep, drop string) (*models.Entity, error) {
	if keep == drop {
		return nil, fmt.Errorf("%w: cannot merge %s into itself", ErrInvalid, keep)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.entities[keep]
	if !ok {
		return nil, fmt.Errorf("%s: %w", keep, ErrNotFound)
	}
	d, ok := r.entities[drop]
	if !ok {
		return nil, fmt.Errorf("%s: %w", drop, ErrNotFound)
	}

	k.Aliases = uniqueStrings(append(append(k.Aliases, d.Name), d.Aliases...))
	k.Tickers = uniqueTickers(append(k.Tickers, d.Tickers...))
	k.Identifiers = uniqueIdents(append(k.Identifiers, d.Identifiers...))
	k.Relationships = append(k.Relationships, d.Relationships...)
	if d.Confidence > k.Confidence {
		k.Confidence = d.Confidence
	}
	if d.Influence > k.Influence {
		k.Influence = d.Influence
	}
	k.UpdatedAt = r.now()

	delete(r.entities, drop)
	for _, e := range r.entities {
		e.Relationships = retarget(e.Relationships, e.ID, drop, keep)
	}
	r.index(k)

	r.l.Info("entities merged", logger.String("keep", keep), logger.String("drop", drop))
	return k.Clone(), nil
}

// RelatedEntity is one hit of FindRelated.
type RelatedEntity struct {
	Entity *models.Entity `json:"entity"`
	Kind   string         `json:"kind"`
	Depth  int            `json:"depth"`
}

// FindRelated walks outgoing relationships breadth-first up to maxDepth hops.
// kinds filters edges; empty means all. Cycles are cut by a visited set.
func (r *Resolver) FindRelated(id string, kinds []string, maxDepth int) ([]RelatedEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entities[id]; !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	allowed := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[strings.ToLower(k)] = struct{}{}
	}

	type node struct {
		id    string
		depth int
	}
	visited := map[string]struct{}{id: {}}
	queue := []node{{id: id}}
	var out []RelatedEntity
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, rel := range r.entities[cur.id].Relationships {
			if len(allowed) > 0 {
				if _, ok := allowed[rel.Kind]; !ok {
					continue
				}
			}
			if _, seen := visited[rel.TargetID]; seen {
				continue
			}
			target, ok := r.entities[rel.TargetID]
			if !ok {
				continue
			}
			visited[rel.TargetID] = struct{}{}
			out = append(out, RelatedEntity{Entity: target.Clone(), Kind: rel.Kind, Depth: cur.depth + 1})
			queue = append(queue, node{id: rel.TargetID, depth: cur.depth + 1})
		}
	}
	return out, nil
}

// checkFree verifies none of e's keys belong to an entity other than self.
// Caller holds mu.
func (r *Resolver) checkFree(e *models.Entity, self string) error {
	for _, n := range nameKeys(e) {
		if owner, ok := r.byName[n]; ok && owner != self {
			return fmt.Errorf("%w: name %q -> %s", ErrAliasConflict, n, owner)
		}
	}
	for _, t := range e.Tickers {
		if owner, ok := r.byTicker[t]; ok && owner != self {
			return fmt.Errorf("%w: ticker %s -> %s", ErrAliasConflict, t, owner)
		}
	}
	for _, ik := range e.Identifiers {
		if owner, ok := r.byIdent[identKey(ik.Type, ik.Value)]; ok && owner != self {
			return fmt.Errorf("%w: identifier %s=%s -> %s", ErrAliasConflict, ik.Type, ik.Value, owner)
		}
	}
	return nil
}

// index points every key of e at e.ID. Caller holds mu.
func (r *Resolver) index(e *models.Entity) {
	for _, n := range nameKeys(e) {
		r.byName[n] = e.ID
	}
	for _, t := range e.Tickers {
		r.byTicker[t] = e.ID
	}
	for _, ik := range e.Identifiers {
		r.byIdent[identKey(ik.Type, ik.Value)] = e.ID
	}
}

func nameKeys(e *models.Entity) []string {
	keys := make([]string, 0, len(e.Aliases)+1)
	for _, n := range append([]string{e.Name}, e.Aliases...) {
		if norm := Normalize(n); norm != "" {
			keys = append(keys, norm)
		}
	}
	return keys
}

func identKey(idType, value string) models.IdentifierKey {
	return models.IdentifierKey{Type: strings.ToLower(strings.TrimSpace(idType)), Value: strings.TrimSpace(value)}
}

// retarget rewrites edges to from so they point at to, dropping self-loops
// and duplicates.
func retarget(rels []models.Relationship, self, from, to string) []models.Relationship {
	out := rels[:0]
	seen := make(map[models.Relationship]struct{}, len(rels))
	for _, rel := range rels {
		if rel.TargetID == from {
			rel.TargetID = to
		}
		if rel.TargetID == self {
			continue
		}
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		out = append(out, rel)
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func uniqueTickers(in []string) []string {
	norm := make([]string, 0, len(in))
	for _, t := range in {
		norm = append(norm, normalizeTicker(t))
	}
	return uniqueStrings(norm)
}

func uniqueIdents(in []models.IdentifierKey) []models.IdentifierKey {
	seen := make(map[models.IdentifierKey]struct{}, len(in))
	out := make([]models.IdentifierKey, 0, len(in))
	for _, ik := range in {
		k := identKey(ik.Type, ik.Value)
		if k.Type == "" || k.Value == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
