package sync

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/assetsync/pkg/assets"
	"github.com/agentstation/assetsync/pkg/devices"
	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/logging"
)

// Catalog is the asset-side collaborator. *assets.Catalog implements it.
type Catalog interface {
	HardwareExists(ctx context.Context, serial, assetTag string) (assets.Hardware, bool, error)
	ModelID(ctx context.Context, productName string) (int, error)
	StatusID(ctx context.Context, name string) (int, error)
	CategoryID(ctx context.Context, name string) (int, error)
	UserID(ctx context.Context, email string) (int, error)
	CreateModel(ctx context.Context, productName string, categoryID, fieldsetID int) (int, error)
	PlanModel(productName string, categoryID int) assets.ModelEntry
	PlannedModel(productName string) (assets.ModelEntry, bool)
	AssignFieldset(ctx context.Context, modelID, fieldsetID int) error
	CreateHardware(ctx context.Context, p assets.Payload) (assets.Hardware, error)
	UpdateHardware(ctx context.Context, id int, p assets.Payload) (assets.Hardware, error)
	Models() []assets.ModelEntry
	Stats() assets.Stats
}

// Suggester proposes a category label for a model name.
// *categorizer.Categorizer implements it.
type Suggester interface {
	Suggest(ctx context.Context, modelName string) string
}

// Engine runs one reconciliation pass per call to Run.
type Engine struct {
	catalog   Catalog
	suggester Suggester
	opts      *Options
	now       func() utc.Time
}

// NewEngine creates an Engine. suggester may be nil.
func NewEngine(catalog Catalog, suggester Suggester, opts ...Option) (*Engine, error) {
	o := Defaults().Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &Engine{catalog: catalog, suggester: suggester, opts: o, now: utc.Now}, nil
}

// Run processes every device in order. Per-device problems are recorded in
// the Summary. A sequence error or context cancellation aborts the run and
// returns the partial Summary with a *errors.FatalError.
func (e *Engine) Run(ctx context.Context, devs iter.Seq2[devices.Record, error]) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		DryRun:    e.opts.DryRun,
		Results:   []DeviceResult{},
	}
	ctx = logging.WithRun(ctx, summary.RunID)
	logger := logging.FromContext(ctx)
	logger.Info().Bool("dry_run", e.opts.DryRun).Msg("Sync started")

	seen := make(map[string]struct{})
	var runErr error
	for rec, err := range devs {
		if err != nil {
			runErr = errors.NewFatalError("device fetch", err)
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = errors.NewFatalError("sync", ctxErr)
			break
		}

		res := e.process(ctx, rec, seen)
		summary.add(res)
		e.opts.Metrics.observeDevice(res.Outcome)
		logDevice(logging.WithDevice(ctx, rec.SerialNumber), res)
	}

	summary.finish(e.now())
	summary.Models = e.catalog.Models()
	summary.Cache = e.catalog.Stats()
	e.opts.Metrics.observeRun(summary)

	if runErr != nil {
		summary.Aborted = true
		summary.AbortReason = runErr.Error()
		logger.Error().Err(runErr).Int("processed", summary.Total).Msg("Sync aborted")
		return summary, runErr
	}
	logger.Info().
		Int("total", summary.Total).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Sync finished")
	return summary, nil
}

// process drives one device from fetched to done.
func (e *Engine) process(ctx context.Context, rec devices.Record, seen map[string]struct{}) DeviceResult {
	res := DeviceResult{
		Serial: rec.SerialNumber,
		Model:  rec.ModelName(),
		Status: rec.StatusName(),
	}

	switch {
	case rec.SerialNumber == "":
		return skipped(res, "missing serial number")
	case slices.ContainsFunc(e.opts.SkipStatuses, func(s string) bool { return strings.EqualFold(s, res.Status) }):
		return skipped(res, fmt.Sprintf("directory status %s is excluded", res.Status))
	}
	if _, dup := seen[rec.SerialNumber]; dup {
		return skipped(res, "duplicate serial in directory feed")
	}
	seen[rec.SerialNumber] = struct{}{}

	ctx = logging.WithDevice(ctx, rec.SerialNumber)
	res.AssetTag = e.opts.AssetTagPrefix + rec.SerialNumber

	modelID, err := e.resolveModel(ctx, rec, &res)
	if err != nil {
		return failed(res, "resolve model", err)
	}
	res.ModelID = modelID

	statusID, err := e.resolveStatus(ctx, rec)
	if err != nil {
		return failed(res, "resolve status", err)
	}
	res.StatusID = statusID

	if e.opts.ResolveUsers && rec.UserEmail != nil && *rec.UserEmail != "" {
		uid, err := e.catalog.UserID(ctx, *rec.UserEmail)
		switch {
		case err == nil:
			res.UserID = uid
		case errors.IsNotFound(err):
			res.Warnings = append(res.Warnings, fmt.Sprintf("user %s not found", *rec.UserEmail))
		default:
			return failed(res, "resolve user", err)
		}
	}

	payload := e.buildPayload(rec, res.AssetTag, modelID, statusID)
	res.Payload = payload

	existing, found, err := e.catalog.HardwareExists(ctx, rec.SerialNumber, res.AssetTag)
	if err != nil {
		return failed(res, "check existing asset", err)
	}
	if found {
		res.AssetID = existing.ID
	}

	if e.opts.DryRun {
		if found {
			res.Outcome = OutcomeUpdated
		} else {
			res.Outcome = OutcomeCreated
		}
		return res
	}

	if found {
		return e.update(ctx, res, existing.ID, payload)
	}

	created, err := e.catalog.CreateHardware(ctx, payload)
	switch {
	case err == nil:
		res.AssetID = created.ID
		res.Outcome = OutcomeCreated
		return res
	case assets.IsDuplicate(err):
		// The search missed a record the API says exists. Retry as one update.
		dupe, ok, lookupErr := e.catalog.HardwareExists(ctx, rec.SerialNumber, res.AssetTag)
		if lookupErr != nil {
			return failed(res, "find duplicate asset", lookupErr)
		}
		if !ok {
			return failed(res, "create asset", err)
		}
		res.Warnings = append(res.Warnings, "create reported a duplicate, updated existing asset")
		return e.update(ctx, res, dupe.ID, payload)
	default:
		return failed(res, "create asset", err)
	}
}

func (e *Engine) update(ctx context.Context, res DeviceResult, id int, payload assets.Payload) DeviceResult {
	res.AssetID = id
	if _, err := e.catalog.UpdateHardware(ctx, id, payload); err != nil {
		return failed(res, "update asset", err)
	}
	res.Outcome = OutcomeUpdated
	return res
}

// resolveModel maps the product name to a model ID, creating the model
// (or planning it in a dry run) when Snipe-IT does not know it.
func (e *Engine) resolveModel(ctx context.Context, rec devices.Record, res *DeviceResult) (int, error) {
	name := rec.ModelName()
	if name == "" {
		return e.opts.DefaultModelID, nil
	}

	id, err := e.catalog.ModelID(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.IsNotFound(err) {
		return 0, err
	}

	if e.opts.DryRun {
		if _, ok := e.catalog.PlannedModel(name); ok {
			res.ModelPlanned = true
			return 0, nil
		}
	}

	categoryID, err := e.resolveCategory(ctx, name)
	if err != nil {
		return 0, err
	}

	if e.opts.DryRun {
		e.catalog.PlanModel(name, categoryID)
		res.ModelPlanned = true
		logging.FromContext(ctx).Info().Str("model", name).Int("category_id", categoryID).Msg("Would create model")
		return 0, nil
	}

	id, err = e.catalog.CreateModel(ctx, name, categoryID, e.opts.FieldsetID)
	if err != nil {
		return 0, err
	}
	res.ModelCreated = true
	if err := e.catalog.AssignFieldset(ctx, id, e.opts.FieldsetID); err != nil {
		res.Warnings = append(res.Warnings, "fieldset assignment failed: "+err.Error())
		logging.FromContext(ctx).Warn().Err(err).Int("model_id", id).Msg("Fieldset assignment failed")
	}
	return id, nil
}

// resolveCategory asks the suggester for a label and maps it to an ID,
// falling back to the default category when the label is unknown.
func (e *Engine) resolveCategory(ctx context.Context, modelName string) (int, error) {
	if e.suggester == nil {
		return e.opts.DefaultCategoryID, nil
	}
	label := e.suggester.Suggest(ctx, modelName)
	if label == "" {
		return e.opts.DefaultCategoryID, nil
	}
	id, err := e.catalog.CategoryID(ctx, label)
	switch {
	case err == nil:
		return id, nil
	case errors.IsNotFound(err):
		logging.FromContext(ctx).Debug().Str("category", label).Msg("Suggested category not found, using default")
		return e.opts.DefaultCategoryID, nil
	default:
		return 0, err
	}
}

func (e *Engine) resolveStatus(ctx context.Context, rec devices.Record) (int, error) {
	status := rec.StatusName()
	if status == "" || status == e.opts.ActiveStatus {
		return e.opts.DefaultStatusID, nil
	}
	id, err := e.catalog.StatusID(ctx, status)
	switch {
	case err == nil:
		return id, nil
	case errors.IsNotFound(err):
		return e.opts.DefaultStatusID, nil
	default:
		return 0, err
	}
}

func skipped(res DeviceResult, reason string) DeviceResult {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	return res
}

func failed(res DeviceResult, stage string, err error) DeviceResult {
	res.Outcome = OutcomeFailed
	res.Reason = stage + ": " + err.Error()
	return res
}

func logDevice(ctx context.Context, res DeviceResult) {
	logger := logging.FromContext(ctx)
	var ev = logger.Info()
	switch res.Outcome {
	case OutcomeFailed:
		ev = logger.Error()
	case OutcomeSkipped:
		ev = logger.Debug()
	}
	ev.Str("outcome", string(res.Outcome)).
		Str("asset_tag", res.AssetTag).
		Int("asset_id", res.AssetID).
		Str("reason", res.Reason).
		Strs("warnings", res.Warnings).
		Msg("Device processed")
}
