package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/assetsync/pkg/logging"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
}

func TestRunAndDeviceFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithRun(ctx, "run-1")
	ctx = logging.WithDevice(ctx, "SN123")

	logging.FromContext(ctx).Info().Msg("processed")

	assert.Equal(t, "run-1", logging.RunID(ctx))
	out := tl.Output()
	assert.Contains(t, out, `"run_id":"run-1"`)
	assert.Contains(t, out, `"serial":"SN123"`)
}

func TestRunIDWithoutRun(t *testing.T) {
	assert.Empty(t, logging.RunID(context.Background()))
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)
	logging.Warn().Str("serial", "SN9").Msg("skipped")
	assert.Len(t, tl.Lines(), 1)
	assert.Contains(t, tl.Output(), "skipped")
}
