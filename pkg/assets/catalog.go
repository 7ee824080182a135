package assets

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/logging"
)

// Lookup kinds reported to a LookupObserver.
const (
	KindModel    = "model"
	KindStatus   = "status"
	KindCategory = "category"
	KindUser     = "user"
)

// Lookup results reported to a LookupObserver.
const (
	ResultHit      = "hit"
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// LookupObserver is notified of every cached lookup.
type LookupObserver interface {
	ObserveLookup(kind, result string)
}

// Stats counts cache behaviour for one run.
type Stats struct {
	Hits   int `json:"hits" yaml:"hits"`
	Misses int `json:"misses" yaml:"misses"`
}

// resolution is a cached lookup outcome. err is nil, a *errors.NotFoundError
// or any other lookup failure.
type resolution struct {
	id  int
	err error
}

// Catalog resolves names to Snipe-IT IDs and remembers every answer for the
// life of one run, misses and failures included. It is not safe for
// concurrent use.
type Catalog struct {
	client   *Client
	observer LookupObserver
	fold     cases.Caser

	cache     map[string]map[string]resolution
	entries   map[string]*ModelEntry
	fieldsets map[int]int
	stats     Stats
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLookupObserver reports lookups to o.
func WithLookupObserver(o LookupObserver) CatalogOption {
	return func(c *Catalog) {
		c.observer = o
	}
}

// NewCatalog creates an empty run-scoped catalog.
func NewCatalog(client *Client, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		client:    client,
		fold:      cases.Fold(),
		cache:     make(map[string]map[string]resolution),
		entries:   make(map[string]*ModelEntry),
		fieldsets: make(map[int]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HardwareExists looks for an asset by asset tag, then by serial when the two
// differ. It is never cached because writes change the answer.
func (c *Catalog) HardwareExists(ctx context.Context, serial, assetTag string) (Hardware, bool, error) {
	terms := []string{assetTag}
	if serial != assetTag {
		terms = append(terms, serial)
	}
	for _, term := range terms {
		if term == "" {
			continue
		}
		rows, err := c.client.SearchHardware(ctx, term)
		if err != nil {
			return Hardware{}, false, errors.WrapResource("lookup", "hardware", term, err)
		}
		for _, h := range rows {
			if (serial != "" && h.Serial == serial) || (assetTag != "" && h.AssetTag == assetTag) {
				return h, true, nil
			}
		}
	}
	return Hardware{}, false, nil
}

// ModelID resolves a product name. An exact match wins, then a
// case-insensitive one. When neither exists the first row in API order is
// taken. Only an empty search yields NotFound.
func (c *Catalog) ModelID(ctx context.Context, productName string) (int, error) {
	return c.resolve(ctx, KindModel, productName, func(ctx context.Context) (int, error) {
		rows, err := c.client.SearchModels(ctx, productName)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, errors.NewNotFoundError("model", productName)
		}
		i := c.match(len(rows), func(i int) string { return rows[i].Name }, productName)
		if i < 0 {
			i = 0
		}
		m := rows[i]
		entry := c.entry(productName)
		entry.ID = m.ID
		if m.Category != nil {
			entry.CategoryID = m.Category.ID
		}
		return m.ID, nil
	})
}

// StatusID resolves a status label name.
func (c *Catalog) StatusID(ctx context.Context, name string) (int, error) {
	return c.resolve(ctx, KindStatus, name, func(ctx context.Context) (int, error) {
		rows, err := c.client.StatusLabels(ctx, name)
		if err != nil {
			return 0, err
		}
		i := c.match(len(rows), func(i int) string { return rows[i].Name }, name)
		if i < 0 {
			return 0, errors.NewNotFoundError("status", name)
		}
		return rows[i].ID, nil
	})
}

// CategoryID resolves a category name.
func (c *Catalog) CategoryID(ctx context.Context, name string) (int, error) {
	return c.resolve(ctx, KindCategory, name, func(ctx context.Context) (int, error) {
		rows, err := c.client.Categories(ctx, name)
		if err != nil {
			return 0, err
		}
		i := c.match(len(rows), func(i int) string { return rows[i].Name }, name)
		if i < 0 {
			return 0, errors.NewNotFoundError("category", name)
		}
		return rows[i].ID, nil
	})
}

// UserID resolves a user by email.
func (c *Catalog) UserID(ctx context.Context, email string) (int, error) {
	return c.resolve(ctx, KindUser, email, func(ctx context.Context) (int, error) {
		rows, err := c.client.Users(ctx, email)
		if err != nil {
			return 0, err
		}
		for _, u := range rows {
			if strings.EqualFold(u.Email, email) {
				return u.ID, nil
			}
		}
		return 0, errors.NewNotFoundError("user", email)
	})
}

// CreateModel creates a model and caches its ID under productName. A
// failure is cached too, so later ModelID calls for the name return it.
func (c *Catalog) CreateModel(ctx context.Context, productName string, categoryID, fieldsetID int) (int, error) {
	m, err := c.client.CreateModel(ctx, productName, categoryID, fieldsetID)
	if err != nil {
		err = errors.WrapResource("create", "model", productName, err)
		if ctx.Err() == nil {
			c.store(KindModel, productName, resolution{err: err})
		}
		return 0, err
	}
	c.store(KindModel, productName, resolution{id: m.ID})

	entry := c.entry(productName)
	entry.ID = m.ID
	entry.CategoryID = categoryID
	entry.Planned = false
	if fieldsetID > 0 && m.Fieldset != nil && m.Fieldset.ID == fieldsetID {
		entry.FieldsetAssigned = true
		c.fieldsets[m.ID] = fieldsetID
	}
	logging.FromContext(ctx).Info().
		Str("model", productName).
		Int("model_id", m.ID).
		Int("category_id", categoryID).
		Msg("Model created")
	return m.ID, nil
}

// PlanModel records a model a dry run would have created.
func (c *Catalog) PlanModel(productName string, categoryID int) ModelEntry {
	entry := c.entry(productName)
	entry.CategoryID = categoryID
	entry.Planned = true
	return *entry
}

// PlannedModel returns the dry-run entry for productName, if one exists.
func (c *Catalog) PlannedModel(productName string) (ModelEntry, bool) {
	entry, ok := c.entries[productName]
	if !ok || !entry.Planned {
		return ModelEntry{}, false
	}
	return *entry, true
}

// AssignFieldset attaches fieldsetID to modelID once. It issues no write when
// this run already assigned it or the model already carries the fieldset.
func (c *Catalog) AssignFieldset(ctx context.Context, modelID, fieldsetID int) error {
	if fieldsetID <= 0 {
		return nil
	}
	if c.fieldsets[modelID] == fieldsetID {
		return nil
	}
	m, err := c.client.GetModel(ctx, modelID)
	if err != nil {
		return errors.WrapResource("lookup", "model", strconv.Itoa(modelID), err)
	}
	if m.Fieldset == nil || m.Fieldset.ID != fieldsetID {
		if err := c.client.SetModelFieldset(ctx, modelID, fieldsetID); err != nil {
			return errors.WrapResource("assign", "fieldset", strconv.Itoa(modelID), err)
		}
		logging.FromContext(ctx).Info().
			Int("model_id", modelID).
			Int("fieldset_id", fieldsetID).
			Msg("Fieldset assigned")
	}
	c.fieldsets[modelID] = fieldsetID
	for _, entry := range c.entries {
		if entry.ID == modelID {
			entry.FieldsetAssigned = true
		}
	}
	return nil
}

// CreateHardware creates an asset.
func (c *Catalog) CreateHardware(ctx context.Context, p Payload) (Hardware, error) {
	h, err := c.client.CreateHardware(ctx, p)
	if err != nil {
		return Hardware{}, err
	}
	return *h, nil
}

// UpdateHardware patches an asset.
func (c *Catalog) UpdateHardware(ctx context.Context, id int, p Payload) (Hardware, error) {
	h, err := c.client.UpdateHardware(ctx, id, p)
	if err != nil {
		return Hardware{}, err
	}
	return *h, nil
}

// IsDuplicate reports whether err means the asset tag or serial is taken.
func IsDuplicate(err error) bool {
	return errors.IsDuplicate(err)
}

// Models returns every model entry touched this run, sorted by name.
func (c *Catalog) Models() []ModelEntry {
	out := make([]ModelEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b ModelEntry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Stats returns cache hit and miss counts.
func (c *Catalog) Stats() Stats {
	return c.stats
}

// resolve answers from the cache or runs fetch once and stores the outcome.
func (c *Catalog) resolve(ctx context.Context, kind, key string, fetch func(context.Context) (int, error)) (int, error) {
	if key == "" {
		return 0, errors.NewValidationError(kind, key, "empty lookup key")
	}
	if r, ok := c.cache[kind][key]; ok {
		c.stats.Hits++
		c.observe(kind, ResultHit)
		return r.id, r.err
	}
	c.stats.Misses++

	id, err := fetch(ctx)
	switch {
	case err == nil:
		c.observe(kind, ResultFound)
	case errors.IsNotFound(err):
		c.observe(kind, ResultNotFound)
	default:
		err = errors.WrapResource("lookup", kind, key, err)
		c.observe(kind, ResultError)
	}
	if ctx.Err() == nil {
		c.store(kind, key, resolution{id: id, err: err})
	}
	logging.FromContext(ctx).Debug().
		Str("kind", kind).
		Str("key", key).
		Int("id", id).
		AnErr("result", err).
		Msg("Catalog lookup")
	return id, err
}

func (c *Catalog) store(kind, key string, r resolution) {
	m, ok := c.cache[kind]
	if !ok {
		m = make(map[string]resolution)
		c.cache[kind] = m
	}
	m[key] = r
}

func (c *Catalog) entry(name string) *ModelEntry {
	e, ok := c.entries[name]
	if !ok {
		e = &ModelEntry{Name: name}
		c.entries[name] = e
	}
	return e
}

func (c *Catalog) observe(kind, result string) {
	if c.observer != nil {
		c.observer.ObserveLookup(kind, result)
	}
}

// match returns the index of the exact match, else the first case-folded
// match, else -1.
func (c *Catalog) match(n int, name func(int) string, want string) int {
	want = strings.TrimSpace(want)
	for i := 0; i < n; i++ {
		if strings.TrimSpace(name(i)) == want {
			return i
		}
	}
	folded := c.fold.String(want)
	for i := 0; i < n; i++ {
		if c.fold.String(strings.TrimSpace(name(i))) == folded {
			return i
		}
	}
	return -1
}
