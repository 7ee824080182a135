package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/assetsync/pkg/assets"
)

// Outcome classifies how one device ended.
type Outcome string

// Device outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// DeviceResult records what happened to one device.
type DeviceResult struct {
	Serial       string         `json:"serial" yaml:"serial"`
	AssetTag     string         `json:"asset_tag,omitempty" yaml:"asset_tag,omitempty"`
	Model        string         `json:"model,omitempty" yaml:"model,omitempty"`
	Status       string         `json:"status,omitempty" yaml:"status,omitempty"`
	Outcome      Outcome        `json:"outcome" yaml:"outcome"`
	Reason       string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	AssetID      int            `json:"asset_id,omitempty" yaml:"asset_id,omitempty"`
	ModelID      int            `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	StatusID     int            `json:"status_id,omitempty" yaml:"status_id,omitempty"`
	UserID       int            `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	ModelCreated bool           `json:"model_created,omitempty" yaml:"model_created,omitempty"`
	ModelPlanned bool           `json:"model_planned,omitempty" yaml:"model_planned,omitempty"`
	Warnings     []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Payload      assets.Payload `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Failure is a failed device and why.
type Failure struct {
	Serial string `json:"serial" yaml:"serial"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary aggregates one run.
type Summary struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	StartedAt  utc.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt utc.Time      `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	DryRun     bool          `json:"dry_run" yaml:"dry_run"`

	Total   int `json:"total" yaml:"total"`
	Created int `json:"created" yaml:"created"`
	Updated int `json:"updated" yaml:"updated"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`

	Aborted     bool   `json:"aborted" yaml:"aborted"`
	AbortReason string `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`

	Results  []DeviceResult      `json:"results" yaml:"results"`
	Failures []Failure           `json:"failures,omitempty" yaml:"failures,omitempty"`
	Models   []assets.ModelEntry `json:"models,omitempty" yaml:"models,omitempty"`
	Cache    assets.Stats        `json:"cache" yaml:"cache"`
}

func (s *Summary) add(r DeviceResult) {
	s.Total++
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Serial: r.Serial, Reason: r.Reason})
	}
	s.Results = append(s.Results, r)
}

func (s *Summary) finish(end utc.Time) {
	s.FinishedAt = end
	s.Duration = end.Time.Sub(s.StartedAt.Time)
}

// Successful reports whether the run completed without failures.
func (s *Summary) Successful() bool {
	return !s.Aborted && s.Failed == 0
}

// String returns a human-readable summary of the run.
func (s *Summary) String() string {
	var b strings.Builder
	title := "Sync summary"
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(&b, "%s %s\n", title, s.RunID)
	fmt.Fprintf(&b, "Total devices processed: %d\n", s.Total)
	fmt.Fprintf(&b, "  Created: %d\n", s.Created)
	fmt.Fprintf(&b, "  Updated: %d\n", s.Updated)
	fmt.Fprintf(&b, "  Skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "  Failed:  %d\n", s.Failed)
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", s.Duration.Seconds())
	if s.Aborted {
		fmt.Fprintf(&b, "Aborted: %s\n", s.AbortReason)
	}
	return b.String()
}
