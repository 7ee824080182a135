package assets

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/assetsync/internal/snipetest"
	"github.com/agentstation/assetsync/internal/transport"
	"github.com/agentstation/assetsync/pkg/errors"
)

type lookupRecorder struct {
	events []string
}

func (l *lookupRecorder) ObserveLookup(kind, result string) {
	l.events = append(l.events, kind+":"+result)
}

func newCatalog(t *testing.T, srv *snipetest.Server, opts ...CatalogOption) *Catalog {
	t.Helper()
	tc, err := transport.New(srv.BaseURL(),
		transport.WithAuth(&transport.BearerAuth{}, srv.Token),
		transport.WithMaxAttempts(1))
	require.NoError(t, err)
	return NewCatalog(NewClient(tc), opts...)
}

func TestModelID(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "ChromeBook X1", 3, 0)
	srv.AddModel(11, "ChromeBook X1 Pro", 3, 0)
	srv.AddModel(12, "Chromebook Spin", 3, 0)
	srv.AddModel(13, "chromebook spin", 3, 0)

	t.Run("case-insensitive fallback", func(t *testing.T) {
		c := newCatalog(t, srv)
		id, err := c.ModelID(context.Background(), "chromebook x1")
		require.NoError(t, err)
		assert.Equal(t, 10, id)
	})

	t.Run("exact match beats earlier folded match", func(t *testing.T) {
		c := newCatalog(t, srv)
		id, err := c.ModelID(context.Background(), "chromebook spin")
		require.NoError(t, err)
		assert.Equal(t, 13, id)
	})

	t.Run("folded ties take first row", func(t *testing.T) {
		c := newCatalog(t, srv)
		id, err := c.ModelID(context.Background(), "CHROMEBOOK SPIN")
		require.NoError(t, err)
		assert.Equal(t, 12, id)
	})

	t.Run("search hits without name match take first row", func(t *testing.T) {
		c := newCatalog(t, srv)
		id, err := c.ModelID(context.Background(), "ChromeBook")
		require.NoError(t, err)
		assert.Equal(t, 10, id)
	})

	t.Run("no rows is not found", func(t *testing.T) {
		c := newCatalog(t, srv)
		_, err := c.ModelID(context.Background(), "Pixelbook Go")
		var nf *errors.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "model", nf.Resource)
	})

	t.Run("empty name is invalid", func(t *testing.T) {
		c := newCatalog(t, srv)
		_, err := c.ModelID(context.Background(), "")
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestLookupsResolveOncePerRun(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "ChromeBook X1", 3, 0)
	srv.AddStatus(4, "Disabled")
	rec := &lookupRecorder{}
	c := newCatalog(t, srv, WithLookupObserver(rec))
	ctx := context.Background()

	for range 3 {
		id, err := c.ModelID(ctx, "ChromeBook X1")
		require.NoError(t, err)
		assert.Equal(t, 10, id)

		_, err = c.ModelID(ctx, "Unknown Model")
		assert.True(t, errors.IsNotFound(err))

		id, err = c.StatusID(ctx, "DISABLED")
		require.NoError(t, err)
		assert.Equal(t, 4, id)
	}

	assert.Equal(t, 2, srv.Count(http.MethodGet, "models"))
	assert.Equal(t, 1, srv.Count(http.MethodGet, "statuslabels"))
	assert.Equal(t, Stats{Hits: 6, Misses: 3}, c.Stats())
	assert.Equal(t, []string{
		"model:found", "model:not_found", "status:found",
		"model:hit", "model:hit", "status:hit",
		"model:hit", "model:hit", "status:hit",
	}, rec.events)
}

func TestLookupErrorsAreCached(t *testing.T) {
	srv := snipetest.New(t)
	srv.Fail = func(r *http.Request) int {
		if r.URL.Path == "/api/v1/categories" {
			return http.StatusInternalServerError
		}
		return 0
	}
	c := newCatalog(t, srv)

	_, err1 := c.CategoryID(context.Background(), "Laptops")
	_, err2 := c.CategoryID(context.Background(), "Laptops")
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.False(t, errors.IsNotFound(err1))
	assert.True(t, errors.IsTransport(err1))
	assert.Equal(t, 1, srv.Count(http.MethodGet, "categories"))
}

func TestUserID(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddUser(7, "Student@Example.com")
	c := newCatalog(t, srv)

	id, err := c.UserID(context.Background(), "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = c.UserID(context.Background(), "nobody@example.com")
	assert.True(t, errors.IsNotFound(err))
}

func TestHardwareExists(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddAsset(56, "5CD10", "5CD10")
	srv.AddAsset(55, "CB-5CD1", "5CD1")
	c := newCatalog(t, srv)
	ctx := context.Background()

	t.Run("found by asset tag", func(t *testing.T) {
		h, ok, err := c.HardwareExists(ctx, "5CD1", "CB-5CD1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 55, h.ID)
	})

	t.Run("substring hits are filtered", func(t *testing.T) {
		h, ok, err := c.HardwareExists(ctx, "5CD1", "5CD1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 55, h.ID)
	})

	t.Run("falls back to serial search", func(t *testing.T) {
		h, ok, err := c.HardwareExists(ctx, "5CD10", "CB-5CD10")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 56, h.ID)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok, err := c.HardwareExists(ctx, "NOPE", "NOPE")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lookup failure", func(t *testing.T) {
		failing := snipetest.New(t)
		failing.Fail = func(*http.Request) int { return http.StatusBadGateway }
		_, ok, err := newCatalog(t, failing).HardwareExists(ctx, "5CD1", "5CD1")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestAssignFieldsetIsIdempotent(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(20, "Already Wired", 3, 9)
	srv.AddModel(21, "Bare Model", 3, 0)
	c := newCatalog(t, srv)
	ctx := context.Background()

	require.NoError(t, c.AssignFieldset(ctx, 20, 9))
	assert.Equal(t, 0, srv.Count(http.MethodPatch, "models/20"), "model already carries the fieldset")

	require.NoError(t, c.AssignFieldset(ctx, 21, 9))
	require.NoError(t, c.AssignFieldset(ctx, 21, 9))
	assert.Equal(t, 1, srv.Count(http.MethodPatch, "models/21"))
	assert.Equal(t, 1, srv.Count(http.MethodGet, "models/21"))
	assert.Equal(t, 9, srv.Model("Bare Model").FieldsetID)

	require.NoError(t, c.AssignFieldset(ctx, 21, 0))
}

func TestCreateModelCachesID(t *testing.T) {
	srv := snipetest.New(t)
	c := newCatalog(t, srv)
	ctx := context.Background()

	_, err := c.ModelID(ctx, "Lenovo 300e")
	require.True(t, errors.IsNotFound(err))

	id, err := c.CreateModel(ctx, "Lenovo 300e", 5, 9)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := c.ModelID(ctx, "Lenovo 300e")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "models"))

	models := c.Models()
	require.Len(t, models, 1)
	assert.Equal(t, ModelEntry{Name: "Lenovo 300e", ID: id, CategoryID: 5, FieldsetAssigned: true}, models[0])

	require.NoError(t, c.AssignFieldset(ctx, id, 9))
	assert.Equal(t, 0, srv.Count(http.MethodGet, "models/"), "creation already attached the fieldset")
}

func TestModelIDPartialMatchTakesFirstRow(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(42, "Dell Latitude 7420", 3, 0)
	srv.AddModel(43, "Dell Latitude 7430", 3, 0)
	c := newCatalog(t, srv)

	id, err := c.ModelID(context.Background(), "Dell Latitude")
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestCreateModelFailureIsCached(t *testing.T) {
	srv := snipetest.New(t)
	srv.Fail = func(r *http.Request) int {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/models" {
			return http.StatusUnprocessableEntity
		}
		return 0
	}
	c := newCatalog(t, srv)
	ctx := context.Background()

	_, err := c.ModelID(ctx, "Pixelbook Go")
	require.True(t, errors.IsNotFound(err))

	_, createErr := c.CreateModel(ctx, "Pixelbook Go", 7, 9)
	require.Error(t, createErr)

	_, err = c.ModelID(ctx, "Pixelbook Go")
	require.Error(t, err)
	assert.False(t, errors.IsNotFound(err), "later lookups report the creation failure")
	assert.Equal(t, createErr.Error(), err.Error())
	assert.Equal(t, 1, srv.Count(http.MethodGet, "models"))
	assert.Equal(t, 1, srv.Count(http.MethodPost, "models"))
}

func TestPlanModel(t *testing.T) {
	c := NewCatalog(nil)
	_, ok := c.PlannedModel("Acer C733")
	assert.False(t, ok)

	c.PlanModel("Acer C733", 4)
	entry, ok := c.PlannedModel("Acer C733")
	require.True(t, ok)
	assert.True(t, entry.Planned)
	assert.Equal(t, 4, entry.CategoryID)
}

func TestHardwareWrites(t *testing.T) {
	srv := snipetest.New(t)
	srv.Token = "secret"
	srv.AddAsset(60, "EXIST", "EXIST")
	c := newCatalog(t, srv)
	ctx := context.Background()

	h, err := c.CreateHardware(ctx, Payload{"asset_tag": "NEW1", "serial": "NEW1", "model_id": 10, "status_id": 2})
	require.NoError(t, err)
	assert.Equal(t, "NEW1", h.AssetTag)

	_, err = c.CreateHardware(ctx, Payload{"asset_tag": "EXIST", "serial": "EXIST", "model_id": 10})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Messages, "asset_tag")

	_, err = c.CreateHardware(ctx, Payload{"asset_tag": "NOMODEL", "serial": "NOMODEL"})
	require.Error(t, err)
	assert.False(t, IsDuplicate(err))

	h, err = c.UpdateHardware(ctx, 60, Payload{"status_id": 4})
	require.NoError(t, err)
	assert.Equal(t, 60, h.ID)
	assert.Equal(t, float64(4), srv.Asset("EXIST").Fields["status_id"])

	_, err = c.UpdateHardware(ctx, 999, Payload{"status_id": 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Asset does not exist.")
}

func TestUnauthorized(t *testing.T) {
	srv := snipetest.New(t)
	srv.Token = "right"
	tc, err := transport.New(srv.BaseURL(), transport.WithAuth(&transport.BearerAuth{}, "wrong"))
	require.NoError(t, err)
	c := NewCatalog(NewClient(tc))

	_, err = c.StatusID(context.Background(), "Ready")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
