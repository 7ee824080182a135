// Package sync reconciles directory devices against Snipe-IT assets.
package sync

import (
	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
)

// Options controls one Engine.
type Options struct {
	DryRun bool // Compute every decision but issue no writes

	AssetTagPrefix    string   // Prepended to the serial to form the asset tag
	ActiveStatus      string   // Directory status that maps to DefaultStatusID
	DefaultStatusID   int      // Status for active devices and unknown statuses
	DefaultModelID    int      // Model for devices without a model name
	DefaultCategoryID int      // Category when the suggested one does not exist
	FieldsetID        int      // Fieldset attached to created models
	SkipStatuses      []string // Directory statuses that are not synced
	ResolveUsers      bool     // Look up the Snipe-IT user for the device email

	Fields CustomFields

	Metrics *Metrics
}

// CustomFields names the Snipe-IT columns written from device attributes.
// An empty name disables the field.
type CustomFields struct {
	MAC      string
	SyncDate string
	IP       string
	User     string
	EOL      string
	Storage  string
}

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		AssetTagPrefix:  constants.DefaultAssetTagPrefix,
		ActiveStatus:    constants.ActiveStatus,
		DefaultStatusID: constants.DefaultStatusID,
		DefaultModelID:  constants.DefaultModelID,
		FieldsetID:      constants.DefaultFieldsetID,
		Fields: CustomFields{
			MAC:      constants.DefaultMACField,
			SyncDate: constants.DefaultSyncDateField,
			IP:       constants.DefaultIPField,
			User:     constants.DefaultUserField,
			EOL:      constants.DefaultEOLField,
		},
	}
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks if the sync options are valid.
func (o *Options) Validate() error {
	if o.DefaultStatusID <= 0 {
		return &errors.ValidationError{Field: "DefaultStatusID", Value: o.DefaultStatusID, Message: "must be positive"}
	}
	if o.DefaultModelID <= 0 {
		return &errors.ValidationError{Field: "DefaultModelID", Value: o.DefaultModelID, Message: "must be positive"}
	}
	if o.DefaultCategoryID < 0 {
		return &errors.ValidationError{Field: "DefaultCategoryID", Value: o.DefaultCategoryID, Message: "must not be negative"}
	}
	if o.FieldsetID < 0 {
		return &errors.ValidationError{Field: "FieldsetID", Value: o.FieldsetID, Message: "must not be negative"}
	}
	return nil
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(o *Options) {
		o.DryRun = dryRun
	}
}

// WithAssetTagPrefix sets the asset tag prefix.
func WithAssetTagPrefix(prefix string) Option {
	return func(o *Options) {
		o.AssetTagPrefix = prefix
	}
}

// WithActiveStatus sets the directory status treated as active.
func WithActiveStatus(status string) Option {
	return func(o *Options) {
		o.ActiveStatus = status
	}
}

// WithDefaultStatusID sets the fallback status.
func WithDefaultStatusID(id int) Option {
	return func(o *Options) {
		o.DefaultStatusID = id
	}
}

// WithDefaultModelID sets the model used when a device has no model name.
func WithDefaultModelID(id int) Option {
	return func(o *Options) {
		o.DefaultModelID = id
	}
}

// WithDefaultCategoryID sets the fallback category.
func WithDefaultCategoryID(id int) Option {
	return func(o *Options) {
		o.DefaultCategoryID = id
	}
}

// WithFieldsetID sets the fieldset attached to created models.
func WithFieldsetID(id int) Option {
	return func(o *Options) {
		o.FieldsetID = id
	}
}

// WithSkipStatuses excludes devices in the given directory statuses.
func WithSkipStatuses(statuses ...string) Option {
	return func(o *Options) {
		o.SkipStatuses = statuses
	}
}

// WithResolveUsers enables user lookup by email.
func WithResolveUsers(enabled bool) Option {
	return func(o *Options) {
		o.ResolveUsers = enabled
	}
}

// WithCustomFields sets the custom field column names.
func WithCustomFields(fields CustomFields) Option {
	return func(o *Options) {
		o.Fields = fields
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
