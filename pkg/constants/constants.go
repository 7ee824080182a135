// Package constants provides shared constants used throughout assetsync.
// This includes timeouts, retry limits, API paths and file permissions that
// must agree between the CLI, the config layer and the sync engine.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout is the per-attempt timeout for directory and asset API calls
	DefaultHTTPTimeout = 30 * time.Second

	// SyncTimeout bounds a complete sync run started from the CLI
	SyncTimeout = 2 * time.Hour

	// CategorizerTimeout bounds a single category suggestion call
	CategorizerTimeout = 30 * time.Second

	// ShutdownTimeout is how long the CLI waits for cleanup after a signal
	ShutdownTimeout = 10 * time.Second
)

// Retry constants
const (
	// DefaultMaxRetries is the number of attempts the requestor makes per call
	DefaultMaxRetries = 4

	// DefaultRetryDelay is the fixed wait between attempts
	DefaultRetryDelay = 20 * time.Second

	// MaxErrorBodySize caps how much of a failed response body is kept
	MaxErrorBodySize = 64 * 1024
)

// Directory constants
const (
	// DefaultPageSize is the directory page size when none is configured
	DefaultPageSize = 200

	// MaxPageSize is the largest page the directory API accepts
	MaxPageSize = 300

	// DefaultCustomer addresses the customer of the delegated admin
	DefaultCustomer = "my_customer"

	// DirectoryBaseURL is the Admin SDK Directory API root
	DirectoryBaseURL = "https://admin.googleapis.com/admin/directory/v1"

	// DirectoryDeviceScope is the OAuth scope for read-only ChromeOS device access
	DirectoryDeviceScope = "https://www.googleapis.com/auth/admin.directory.device.chromeos.readonly"
)

// Asset catalog constants
const (
	// ActiveStatus is the directory status that maps to the default asset status
	ActiveStatus = "ACTIVE"

	// DefaultAssetTagPrefix is empty so the asset tag equals the serial
	DefaultAssetTagPrefix = ""

	// DefaultModelID is used when a device reports no model name
	DefaultModelID = 87

	// DefaultFieldsetID is the custom fieldset attached to models
	DefaultFieldsetID = 9

	// DefaultStatusID is the status assigned to ACTIVE and unknown statuses
	DefaultStatusID = 2

	// DefaultCategory is the category name used when suggestion fails
	DefaultCategory = "Chromebooks"

	// DefaultGeminiModel is the generative model used for categorization
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Custom field defaults for a stock Snipe-IT fieldset
const (
	DefaultMACField      = "_snipeit_mac_address_1"
	DefaultSyncDateField = "_snipeit_sync_date_9"
	DefaultIPField       = "_snipeit_ip_address_3"
	DefaultUserField     = "_snipeit_user_10"
	DefaultEOLField      = "asset_eol_date"
)

// DefaultCategories are offered to the categorizer when none are configured.
var DefaultCategories = []string{
	"Chromebooks",
	"Laptops",
	"Desktops",
	"Tablets",
	"Monitors",
	"Networking",
	"Peripherals",
}

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for report and metric files (rw-r--r--)
	FilePermissions = 0644
)

// Date formats
const (
	// DateFormat is the layout Snipe-IT expects for date custom fields
	DateFormat = "2006-01-02"
)
