// Package engine implements the CRUD operations over the in-memory store:
// create, update, delete, single retrieve and set-based retrieval through
// the query executor. The engine enforces entity invariants (identity,
// alternate-key uniqueness, date bounds, versioning) and knows nothing of
// the hook pipeline that may wrap it.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/query"
	"github.com/crmock/crmock/internal/record"
	"github.com/crmock/crmock/internal/store"
)

// System attribute names stamped by the engine.
const (
	attrCreatedOn  = "createdon"
	attrModifiedOn = "modifiedon"
	attrCreatedBy  = "createdby"
	attrModifiedBy = "modifiedby"
	attrState      = "statecode"
	attrVersion    = "versionnumber"
)

// stateActive is the only state a record may be created in; transitions
// happen through updates afterwards.
const stateActive = 0

// MinDate is the earliest date-time the emulated storage engine accepts.
var MinDate = time.Date(1753, time.January, 1, 0, 0, 0, 0, time.UTC)

// Engine is one independent simulator instance. All state (store,
// metadata, version clock, fiscal settings) is owned by the instance, so
// multiple engines can run in one process for parallel test isolation.
//
// Engines are safe for concurrent use from multiple goroutines.
type Engine struct {
	store  *store.Store
	meta   metadata.Provider
	clock  *Clock
	caller record.Ref
	loc    *time.Location
	fiscal query.FiscalSettings
	now    func() time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithCaller sets the reference stamped into createdby/modifiedby.
func WithCaller(caller record.Ref) Option {
	return func(e *Engine) { e.caller = caller }
}

// WithTimeZone sets the zone date comparisons normalize to.
func WithTimeZone(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithFiscalSettings configures the fiscal calendar used by the
// fiscal-period operators.
func WithFiscalSettings(fs query.FiscalSettings) Option {
	return func(e *Engine) { e.fiscal = fs }
}

// WithNow overrides the wall clock; used by tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over an empty store. meta may be nil for fully
// schema-less operation; alternate keys and display-text resolution then
// have nothing to work with.
func New(meta metadata.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:  store.New(),
		meta:   meta,
		clock:  NewClock(),
		loc:    time.UTC,
		fiscal: query.DefaultFiscalSettings(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying store for seeding and assertions.
func (e *Engine) Store() *store.Store { return e.store }

// Version returns the current value of the version counter.
func (e *Engine) Version() int64 { return e.clock.Current() }

// Create validates and stores a new record, returning its id. A failed
// create leaves the store unchanged for that record.
func (e *Engine) Create(src *record.Entity) (uuid.UUID, error) {
	if src == nil {
		return uuid.Nil, faults.Validation("create requires an entity")
	}
	if src.Type == "" {
		return uuid.Nil, faults.Validation("create requires an entity type name")
	}

	ent := src.Clone()
	if ent.ID == uuid.Nil {
		ent.ID = uuid.New()
	}
	if _, exists := e.store.TryGet(ent.Type, ent.ID); exists {
		return uuid.Nil, &faults.Fault{
			Code:    faults.CodeUniqueness,
			Entity:  ent.Type,
			Message: "a record with this id already exists",
		}
	}

	// Explicit nulls mean "not set" on create.
	for _, name := range ent.Names() {
		if v, _ := ent.Get(name); record.IsNull(v) {
			ent.Remove(name)
		}
	}

	// Records are created active, then transitioned.
	if v, ok := ent.Get(attrState); ok {
		if code, isOption := stateCode(v); !isOption || code != stateActive {
			return uuid.Nil, faults.Validation("records of %q must be created in the active state", ent.Type)
		}
	}

	if err := e.normalizeDates(ent); err != nil {
		return uuid.Nil, err
	}

	pid := e.primaryIDAttribute(ent.Type)
	if !ent.Has(pid) {
		ent.Set(pid, record.GUID(ent.ID))
	}

	if err := e.checkAlternateKeys(ent, ent.ID); err != nil {
		return uuid.Nil, err
	}

	now := e.now().UTC()
	if !ent.Has(attrCreatedOn) {
		ent.Set(attrCreatedOn, record.NewTime(now))
	}
	ent.Set(attrModifiedOn, record.NewTime(now))
	if e.caller.Entity != "" {
		if !ent.Has(attrCreatedBy) {
			ent.Set(attrCreatedBy, e.caller)
		}
		ent.Set(attrModifiedBy, e.caller)
	}
	if !ent.Has(attrState) {
		ent.Set(attrState, record.Option(stateActive))
	}
	ent.Set(attrVersion, record.Int(e.clock.Next()))

	e.store.Upsert(ent.Type, ent.ID, ent)
	return ent.ID, nil
}

// Update merges attributes into an existing record. An attribute set to
// an explicit null is removed from the stored record.
func (e *Engine) Update(src *record.Entity) error {
	return e.update(src, 0)
}

// UpdateWithVersion is Update with an optimistic-concurrency token: the
// update fails with a concurrency fault unless the stored version equals
// the token.
func (e *Engine) UpdateWithVersion(src *record.Entity, version int64) error {
	if version == 0 {
		return faults.Validation("concurrency token must not be zero")
	}
	return e.update(src, version)
}

func (e *Engine) update(src *record.Entity, version int64) error {
	if src == nil {
		return faults.Validation("update requires an entity")
	}
	if src.Type == "" {
		return faults.Validation("update requires an entity type name")
	}

	id := src.ID
	if id == uuid.Nil {
		resolved, err := e.resolveByAlternateKey(src)
		if err != nil {
			return err
		}
		id = resolved
	}

	stored, ok := e.store.TryGet(src.Type, id)
	if !ok {
		return faults.NotFound(src.Type, "record %s does not exist", id)
	}

	if version != 0 {
		storedVersion := stored.GetInt(attrVersion)
		if storedVersion != version {
			return faults.Concurrency(src.Type, version, storedVersion)
		}
	}

	merged := stored.Clone()
	for _, name := range src.Names() {
		v, _ := src.Get(name)
		if record.IsNull(v) {
			merged.Remove(name)
			continue
		}
		merged.Set(name, v)
	}
	if err := e.normalizeDates(merged); err != nil {
		return err
	}

	// Re-check uniqueness on the merged attribute set, excluding the
	// record under update by id.
	if err := e.checkAlternateKeys(merged, id); err != nil {
		return err
	}

	now := e.now().UTC()
	merged.Set(attrModifiedOn, record.NewTime(now))
	if e.caller.Entity != "" {
		merged.Set(attrModifiedBy, e.caller)
	}
	merged.Set(attrVersion, record.Int(e.clock.Next()))

	e.store.Upsert(src.Type, id, merged)
	return nil
}

// Delete removes the referenced record.
func (e *Engine) Delete(ref record.Ref) error {
	if ref.Entity == "" {
		return faults.Validation("delete requires an entity type name")
	}
	if _, ok := e.store.TryGet(ref.Entity, ref.ID); !ok {
		return faults.NotFound(ref.Entity, "record %s does not exist", ref.ID)
	}
	e.store.Remove(ref.Entity, ref.ID)
	return nil
}

// Retrieve returns a projected copy of one record, or nil when it does
// not exist. Reference attributes get display text populated from the
// referenced record's primary-name attribute when resolvable, without
// overwriting text already supplied by the caller.
func (e *Engine) Retrieve(entityType string, id uuid.UUID, columns query.ColumnSet) (*record.Entity, error) {
	if entityType == "" {
		return nil, faults.Validation("retrieve requires an entity type name")
	}
	stored, ok := e.store.TryGet(entityType, id)
	if !ok {
		return nil, nil
	}
	out := query.ProjectEntity(stored, columns)
	e.resolveDisplayText(out)
	return out, nil
}

// RetrieveMultiple executes a query plan and returns the matching rows.
func (e *Engine) RetrieveMultiple(p *query.Plan) ([]*record.Entity, error) {
	x := &query.Executor{
		Source:   e.store,
		Meta:     e.meta,
		Fiscal:   e.fiscal,
		Location: e.loc,
		Now:      e.now,
	}
	results, err := x.Execute(p)
	if err != nil {
		return nil, err
	}
	for _, ent := range results {
		e.resolveDisplayText(ent)
	}
	return results, nil
}

// normalizeDates converts date-time attributes to UTC and rejects values
// earlier than the supported minimum.
func (e *Engine) normalizeDates(ent *record.Entity) error {
	for _, name := range ent.Names() {
		v, _ := ent.Get(name)
		t, ok := v.(record.Time)
		if !ok {
			continue
		}
		std := t.Std()
		if std.Before(MinDate) {
			return faults.Range("attribute %q: date %s is earlier than the supported minimum %s",
				name, std.Format(time.RFC3339), MinDate.Format("2006-01-02"))
		}
		ent.Set(name, record.NewTime(std.UTC()))
	}
	return nil
}

// checkAlternateKeys enforces uniqueness for every defined key whose
// attributes are all non-null on the candidate. A record with any key
// attribute null opts out of the constraint entirely.
func (e *Engine) checkAlternateKeys(candidate *record.Entity, excludeID uuid.UUID) error {
	if e.meta == nil {
		return nil
	}
	meta, ok := e.meta.Entity(candidate.Type)
	if !ok {
		return nil
	}

	for _, key := range meta.Keys {
		values := make([]record.Value, 0, len(key.Attributes))
		complete := true
		for _, attr := range key.Attributes {
			v, ok := candidate.Get(attr)
			if !ok || record.IsNull(v) {
				complete = false
				break
			}
			values = append(values, v)
		}
		if !complete {
			continue
		}

		for _, other := range e.store.Enumerate(candidate.Type) {
			if other.ID == excludeID {
				continue
			}
			if matchesKeyValues(other, key.Attributes, values) {
				return faults.Uniqueness(candidate.Type, key.Attributes)
			}
		}
	}
	return nil
}

func matchesKeyValues(ent *record.Entity, attributes []string, values []record.Value) bool {
	for i, attr := range attributes {
		v, ok := ent.Get(attr)
		if !ok || record.IsNull(v) {
			return false
		}
		eq, err := record.Equal(v, values[i])
		if err != nil || !eq {
			return false
		}
	}
	return true
}

// resolveByAlternateKey resolves an update target from a complete
// alternate key carried on the entity.
func (e *Engine) resolveByAlternateKey(src *record.Entity) (uuid.UUID, error) {
	if e.meta == nil {
		return uuid.Nil, faults.Validation("update requires an id or a complete alternate key")
	}
	meta, ok := e.meta.Entity(src.Type)
	if !ok || len(meta.Keys) == 0 {
		return uuid.Nil, faults.Validation("update requires an id or a complete alternate key")
	}

	attempted := false
	for _, key := range meta.Keys {
		values := make([]record.Value, 0, len(key.Attributes))
		complete := true
		for _, attr := range key.Attributes {
			v, ok := src.Get(attr)
			if !ok || record.IsNull(v) {
				complete = false
				break
			}
			values = append(values, v)
		}
		if !complete {
			continue
		}
		attempted = true
		for _, other := range e.store.Enumerate(src.Type) {
			if matchesKeyValues(other, key.Attributes, values) {
				return other.ID, nil
			}
		}
	}

	if attempted {
		return uuid.Nil, faults.NotFound(src.Type, "no record matches the supplied alternate key")
	}
	return uuid.Nil, faults.Validation("update requires an id or a complete alternate key")
}

// resolveDisplayText fills Ref display text from the referenced record's
// primary-name attribute. Caller-supplied text is never overwritten.
func (e *Engine) resolveDisplayText(ent *record.Entity) {
	for _, name := range ent.Names() {
		v, _ := ent.Get(name)
		ref, isRef := record.Unwrap(v).(record.Ref)
		if !isRef || ref.Name != "" {
			continue
		}
		target, ok := e.store.TryGet(ref.Entity, ref.ID)
		if !ok {
			continue
		}
		display := target.GetString(e.primaryNameAttribute(ref.Entity))
		if display == "" {
			continue
		}
		ref.Name = display
		if aliased, isAliased := v.(record.Aliased); isAliased {
			aliased.Value = ref
			ent.Set(name, aliased)
		} else {
			ent.Set(name, ref)
		}
	}
}

func (e *Engine) primaryIDAttribute(entityType string) string {
	if e.meta != nil {
		if meta, ok := e.meta.Entity(entityType); ok {
			return meta.PrimaryIDAttribute()
		}
	}
	return entityType + "id"
}

func (e *Engine) primaryNameAttribute(entityType string) string {
	if e.meta != nil {
		if meta, ok := e.meta.Entity(entityType); ok && meta.PrimaryName != "" {
			return meta.PrimaryName
		}
	}
	return "name"
}

func stateCode(v record.Value) (int, bool) {
	switch sv := record.Unwrap(v).(type) {
	case record.Option:
		return int(sv), true
	case record.Int:
		return int(sv), true
	}
	return 0, false
}
