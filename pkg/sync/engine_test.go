package sync

import (
	"context"
	"iter"
	"net/http"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/assetsync/internal/snipetest"
	"github.com/agentstation/assetsync/internal/transport"
	"github.com/agentstation/assetsync/internal/utils/ptr"
	"github.com/agentstation/assetsync/pkg/assets"
	"github.com/agentstation/assetsync/pkg/devices"
	"github.com/agentstation/assetsync/pkg/errors"
)

func noWait(context.Context, time.Duration) error { return nil }

func newCatalog(t *testing.T, srv *snipetest.Server) *assets.Catalog {
	t.Helper()
	tc, err := transport.New(srv.BaseURL(),
		transport.WithAuth(&transport.BearerAuth{}, srv.Token),
		transport.WithMaxAttempts(2),
		transport.WithSleeper(noWait))
	require.NoError(t, err)
	return assets.NewCatalog(assets.NewClient(tc))
}

func newEngine(t *testing.T, catalog Catalog, s Suggester, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(catalog, s, opts...)
	require.NoError(t, err)
	return e
}

func feed(recs ...devices.Record) iter.Seq2[devices.Record, error] {
	return func(yield func(devices.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func device(serial, model, status string) devices.Record {
	return devices.Record{
		SerialNumber: serial,
		Model:        ptr.NonEmpty(model),
		Status:       ptr.NonEmpty(status),
	}
}

type suggestFunc func(ctx context.Context, name string) string

func (f suggestFunc) Suggest(ctx context.Context, name string) string { return f(ctx, name) }

func TestRunCreatesNewAsset(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(context.Background(), feed(device("S1", "Chromebook X1", "ACTIVE")))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Created)
	assert.True(t, summary.Successful())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "hardware"))
	assert.Zero(t, srv.Count(http.MethodPatch, "hardware/"))

	a := srv.Asset("S1")
	require.NotNil(t, a)
	assert.Equal(t, "S1", a.AssetTag)
	assert.EqualValues(t, 10, a.Fields["model_id"])
	assert.EqualValues(t, 2, a.Fields["status_id"])

	res := summary.Results[0]
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, a.ID, res.AssetID)
}

func TestRunUpdatesExistingAsset(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.AddAsset(55, "CB-S1", "S1")

	e := newEngine(t, newCatalog(t, srv), nil, WithAssetTagPrefix("CB-"))
	summary, err := e.Run(context.Background(), feed(device("S1", "Chromebook X1", "")))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, srv.Count(http.MethodPatch, "hardware/55"))
	assert.Zero(t, srv.Count(http.MethodPost, "hardware"))
	assert.Equal(t, 55, summary.Results[0].AssetID)
	assert.Equal(t, "CB-S1", srv.Asset("S1").Fields["asset_tag"])
}

func TestRunRecordsWriteFailure(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.Fail = func(r *http.Request) int {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/hardware" {
			return http.StatusServiceUnavailable
		}
		return 0
	}

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(context.Background(), feed(
		device("S1", "Chromebook X1", "ACTIVE"),
		device("S2", "Chromebook X1", "ACTIVE"),
	))
	require.NoError(t, err, "per-device failures do not abort the run")

	assert.Equal(t, 2, summary.Failed)
	assert.False(t, summary.Successful())
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "S1", summary.Failures[0].Serial)
	assert.Contains(t, summary.Failures[0].Reason, "create asset")
	assert.Equal(t, 4, srv.Count(http.MethodPost, "hardware"), "two attempts per device")
}

func TestRunDryRun(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.AddAsset(55, "S1", "S1")

	e := newEngine(t, newCatalog(t, srv), suggestFunc(func(context.Context, string) string { return "" }),
		WithDryRun(true), WithDefaultCategoryID(4))
	summary, err := e.Run(context.Background(), feed(
		device("S1", "Chromebook X1", "ACTIVE"),
		device("S2", "Pixelbook Go", "ACTIVE"),
		device("S3", "Pixelbook Go", "ACTIVE"),
	))
	require.NoError(t, err)

	assert.Zero(t, srv.Writes())
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.Created)
	assert.True(t, summary.Results[1].ModelPlanned)
	assert.True(t, summary.Results[2].ModelPlanned)
	assert.Equal(t, 2, srv.Count(http.MethodGet, "models"), "each model name is looked up once")

	require.Len(t, summary.Models, 2)
	planned := summary.Models[1]
	assert.Equal(t, "Pixelbook Go", planned.Name)
	assert.True(t, planned.Planned)
	assert.Equal(t, 4, planned.CategoryID)
}

func TestRunSkips(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)

	e := newEngine(t, newCatalog(t, srv), nil, WithSkipStatuses("DEPROVISIONED"))
	summary, err := e.Run(context.Background(), feed(
		device("", "Chromebook X1", "ACTIVE"),
		device("S1", "Chromebook X1", "deprovisioned"),
		device("S2", "Chromebook X1", "ACTIVE"),
		device("S2", "Chromebook X1", "ACTIVE"),
	))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, "missing serial number", summary.Results[0].Reason)
	assert.Contains(t, summary.Results[1].Reason, "excluded")
	assert.Equal(t, "duplicate serial in directory feed", summary.Results[3].Reason)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "hardware"))
}

func TestRunAbortsOnFetchError(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	fetchErr := &errors.FetchError{Page: 2, PageToken: "p2", Err: errors.New("boom")}

	seq := func(yield func(devices.Record, error) bool) {
		if !yield(device("S1", "Chromebook X1", "ACTIVE"), nil) {
			return
		}
		yield(devices.Record{}, fetchErr)
	}

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(context.Background(), seq)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, fetchErr)

	var fatal *errors.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "device fetch", fatal.Stage)

	require.NotNil(t, summary)
	assert.True(t, summary.Aborted)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Created)
	assert.Contains(t, summary.AbortReason, "page 2")
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := snipetest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(ctx, feed(device("S1", "Chromebook X1", "ACTIVE")))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Total)
	assert.Empty(t, srv.Calls())
}

// racingCatalog hides an asset from the first existence check, then seeds it
// so the create is rejected as a duplicate.
type racingCatalog struct {
	*assets.Catalog
	srv    *snipetest.Server
	raced  bool
	checks int
}

func (c *racingCatalog) HardwareExists(ctx context.Context, serial, tag string) (assets.Hardware, bool, error) {
	c.checks++
	if !c.raced {
		c.raced = true
		c.srv.AddAsset(77, tag, serial)
		return assets.Hardware{}, false, nil
	}
	return c.Catalog.HardwareExists(ctx, serial, tag)
}

func TestRunDuplicateCreateFallsBackToUpdate(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	cat := &racingCatalog{Catalog: newCatalog(t, srv), srv: srv}

	e := newEngine(t, cat, nil)
	summary, err := e.Run(context.Background(), feed(device("S1", "Chromebook X1", "ACTIVE")))
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, 77, res.AssetID)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, 2, cat.checks)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "hardware"))
	assert.Equal(t, 1, srv.Count(http.MethodPatch, "hardware/77"))
}

func TestRunCreatesModelWithCategory(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddCategory(7, "Laptops")

	var asked []string
	suggester := suggestFunc(func(_ context.Context, name string) string {
		asked = append(asked, name)
		return "laptops"
	})

	e := newEngine(t, newCatalog(t, srv), suggester, WithFieldsetID(9))
	summary, err := e.Run(context.Background(), feed(
		device("S1", "Pixelbook Go", "ACTIVE"),
		device("S2", "Pixelbook Go", "ACTIVE"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, []string{"Pixelbook Go"}, asked, "category is suggested once per model")
	assert.Equal(t, 1, srv.Count(http.MethodPost, "models"))
	assert.Zero(t, srv.Count(http.MethodPatch, "models/"), "fieldset was set at creation")

	m := srv.Model("Pixelbook Go")
	require.NotNil(t, m)
	assert.Equal(t, 7, m.CategoryID)
	assert.Equal(t, 9, m.FieldsetID)

	assert.True(t, summary.Results[0].ModelCreated)
	assert.False(t, summary.Results[1].ModelCreated)
	assert.Equal(t, m.ID, summary.Results[1].ModelID)

	require.Len(t, summary.Models, 1)
	assert.True(t, summary.Models[0].FieldsetAssigned)
}

func TestRunModelCreationFailureIsAttemptedOnce(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddCategory(7, "Laptops")
	srv.Fail = func(r *http.Request) int {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/models" {
			return http.StatusUnprocessableEntity
		}
		return 0
	}

	calls := 0
	suggester := suggestFunc(func(context.Context, string) string {
		calls++
		return "Laptops"
	})

	e := newEngine(t, newCatalog(t, srv), suggester)
	summary, err := e.Run(context.Background(), feed(
		device("S1", "Pixelbook Go", "ACTIVE"),
		device("S2", "Pixelbook Go", "ACTIVE"),
		device("S3", "Pixelbook Go", "ACTIVE"),
	))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 1, calls, "category is suggested once per model")
	assert.Equal(t, 1, srv.Count(http.MethodPost, "models"))
	assert.Zero(t, srv.Count(http.MethodPost, "hardware"))
	for _, r := range summary.Results {
		assert.Contains(t, r.Reason, "create model")
	}
}

func TestRunUnknownCategoryUsesDefault(t *testing.T) {
	srv := snipetest.New(t)
	e := newEngine(t, newCatalog(t, srv), suggestFunc(func(context.Context, string) string { return "Tablets" }),
		WithDefaultCategoryID(4))
	_, err := e.Run(context.Background(), feed(device("S1", "Pixelbook Go", "ACTIVE")))
	require.NoError(t, err)
	assert.Equal(t, 4, srv.Model("Pixelbook Go").CategoryID)
}

func TestRunStatusMapping(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.AddStatus(5, "Disabled")

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(context.Background(), feed(
		device("S1", "Chromebook X1", "ACTIVE"),
		device("S2", "Chromebook X1", "DISABLED"),
		device("S3", "Chromebook X1", "PROVISIONED"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Results[0].StatusID)
	assert.Equal(t, 5, summary.Results[1].StatusID)
	assert.Equal(t, 2, summary.Results[2].StatusID)
	assert.Equal(t, 2, srv.Count(http.MethodGet, "statuslabels"))
}

func TestRunStatusLookupFailure(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.Fail = func(r *http.Request) int {
		if r.URL.Path == "/api/v1/statuslabels" {
			return http.StatusInternalServerError
		}
		return 0
	}

	e := newEngine(t, newCatalog(t, srv), nil)
	summary, err := e.Run(context.Background(), feed(device("S1", "Chromebook X1", "DISABLED")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	assert.Contains(t, summary.Results[0].Reason, "resolve status")
	assert.Zero(t, srv.Writes())
}

func TestRunMissingModelNameUsesDefault(t *testing.T) {
	srv := snipetest.New(t)
	e := newEngine(t, newCatalog(t, srv), nil, WithDefaultModelID(87))
	summary, err := e.Run(context.Background(), feed(device("S1", "", "ACTIVE")))
	require.NoError(t, err)
	assert.Equal(t, 87, summary.Results[0].ModelID)
	assert.Zero(t, srv.Count(http.MethodGet, "models"))
}

func TestRunResolvesUsers(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	srv.AddUser(42, "ada@example.com")

	known := device("S1", "Chromebook X1", "ACTIVE")
	known.UserEmail = ptr.String("Ada@example.com")
	unknown := device("S2", "Chromebook X1", "ACTIVE")
	unknown.UserEmail = ptr.String("bob@example.com")

	e := newEngine(t, newCatalog(t, srv), nil, WithResolveUsers(true))
	summary, err := e.Run(context.Background(), feed(known, unknown))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 42, summary.Results[0].UserID)
	assert.Zero(t, summary.Results[1].UserID)
	assert.NotEmpty(t, summary.Results[1].Warnings)
}

func TestRunDuration(t *testing.T) {
	srv := snipetest.New(t)
	e := newEngine(t, newCatalog(t, srv), nil)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	e.now = func() utc.Time {
		calls++
		return utc.New(start.Add(time.Duration(calls-1) * 90 * time.Second))
	}

	summary, err := e.Run(context.Background(), feed())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, summary.Duration)
	assert.Zero(t, summary.Total)
	assert.NotNil(t, summary.Results)
}

func TestRunMetrics(t *testing.T) {
	srv := snipetest.New(t)
	srv.AddModel(10, "Chromebook X1", 3, 9)
	m := NewMetrics(prometheus.NewRegistry())

	e := newEngine(t, newCatalog(t, srv), nil, WithMetrics(m))
	_, err := e.Run(context.Background(), feed(
		device("S1", "Chromebook X1", "ACTIVE"),
		device("", "Chromebook X1", "ACTIVE"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.devices.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.devices.WithLabelValues("skipped")))
	assert.Positive(t, testutil.ToFloat64(m.lastRun))
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(nil, nil, WithDefaultStatusID(0))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
