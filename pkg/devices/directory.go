package devices

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/assetsync/internal/transport"
	"github.com/agentstation/assetsync/internal/utils/ptr"
	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/logging"
)

// Sender is the subset of the transport client the source needs.
type Sender interface {
	Send(ctx context.Context, r transport.Request) (*transport.Response, error)
}

// Source reads ChromeOS devices for one customer.
type Source struct {
	client   Sender
	customer string
	orgUnit  string
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithCustomer overrides the customer ID. Defaults to my_customer.
func WithCustomer(id string) SourceOption {
	return func(s *Source) {
		if id != "" {
			s.customer = id
		}
	}
}

// WithOrgUnit restricts the listing to an organizational unit path.
func WithOrgUnit(path string) SourceOption {
	return func(s *Source) {
		s.orgUnit = path
	}
}

// NewSource creates a Source. client must already be authenticated and
// based at the Directory API root.
func NewSource(client Sender, opts ...SourceOption) *Source {
	s := &Source{client: client, customer: constants.DefaultCustomer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll returns a lazy sequence over every device. The next page is
// requested only after the previous one has been consumed. A page failure
// yields one *errors.FetchError and ends the sequence.
func (s *Source) FetchAll(ctx context.Context, pageSize int) iter.Seq2[Record, error] {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	return func(yield func(Record, error) bool) {
		logger := logging.FromContext(ctx)
		token := ""
		for page := 1; ; page++ {
			list, err := s.fetchPage(ctx, pageSize, token)
			if err != nil {
				yield(Record{}, &errors.FetchError{Page: page, PageToken: token, Err: err})
				return
			}
			logger.Debug().
				Int("page", page).
				Int("devices", len(list.Devices)).
				Bool("more", list.NextPageToken != "").
				Msg("Fetched device page")

			for _, d := range list.Devices {
				if !yield(d.record(), nil) {
					return
				}
			}
			if list.NextPageToken == "" {
				return
			}
			token = list.NextPageToken
		}
	}
}

func (s *Source) fetchPage(ctx context.Context, pageSize int, token string) (*deviceList, error) {
	q := url.Values{
		"maxResults": {strconv.Itoa(pageSize)},
		"projection": {"FULL"},
	}
	if token != "" {
		q.Set("pageToken", token)
	}
	if s.orgUnit != "" {
		q.Set("orgUnitPath", s.orgUnit)
	}

	path := "customer/" + url.PathEscape(s.customer) + "/devices/chromeos"
	resp, err := s.client.Send(ctx, transport.Get(path, q))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errors.NewAPIError("directory", path, resp.StatusCode, resp.Snippet())
	}
	var list deviceList
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

// deviceList is the chromeosdevices.list response.
type deviceList struct {
	Devices       []apiDevice `json:"chromeosdevices"`
	NextPageToken string      `json:"nextPageToken"`
}

type apiDevice struct {
	SerialNumber   string `json:"serialNumber"`
	Status         string `json:"status"`
	Model          string `json:"model"`
	MACAddress     string `json:"macAddress"`
	AnnotatedUser  string `json:"annotatedUser"`
	OrgUnitPath    string `json:"orgUnitPath"`
	LastSync       string `json:"lastSync"`
	AutoUpdateThru string `json:"autoUpdateThrough"`
	// AutoUpdateExpiration is epoch milliseconds encoded as a string.
	AutoUpdateExpiration string `json:"autoUpdateExpiration"`
	RecentUsers          []struct {
		Email string `json:"email"`
	} `json:"recentUsers"`
	LastKnownNetwork []struct {
		IPAddress string `json:"ipAddress"`
	} `json:"lastKnownNetwork"`
	ActiveTimeRanges []struct {
		Date string `json:"date"`
	} `json:"activeTimeRanges"`
	DiskSpaceUsage *struct {
		CapacityBytes string `json:"capacityBytes"`
	} `json:"diskSpaceUsage"`
}

func (d apiDevice) record() Record {
	r := Record{
		SerialNumber: strings.TrimSpace(d.SerialNumber),
		Status:       ptr.NonEmpty(d.Status),
		Model:        ptr.NonEmpty(strings.TrimSpace(d.Model)),
		MACAddress:   ptr.NonEmpty(d.MACAddress),
		OrgUnitPath:  ptr.NonEmpty(d.OrgUnitPath),
	}

	switch {
	case len(d.RecentUsers) > 0 && d.RecentUsers[0].Email != "":
		r.UserEmail = ptr.String(d.RecentUsers[0].Email)
	case d.AnnotatedUser != "":
		r.UserEmail = ptr.String(d.AnnotatedUser)
	}
	if len(d.LastKnownNetwork) > 0 {
		r.IPAddress = ptr.NonEmpty(d.LastKnownNetwork[0].IPAddress)
	}
	if len(d.ActiveTimeRanges) > 0 {
		r.LastActive = ptr.NonEmpty(d.ActiveTimeRanges[0].Date)
	}
	if d.LastSync != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.LastSync); err == nil {
			r.LastSync = ptr.To(utc.New(t))
		}
	}
	r.EOLDate = eolDate(d.AutoUpdateThru, d.AutoUpdateExpiration)
	if d.DiskSpaceUsage != nil {
		if b, err := strconv.ParseInt(d.DiskSpaceUsage.CapacityBytes, 10, 64); err == nil && b > 0 {
			r.StorageBytes = &b
		}
	}
	return r
}

// eolDate prefers autoUpdateThrough and falls back to the epoch-millis field.
func eolDate(through, expirationMillis string) *string {
	if through != "" {
		if len(through) >= len(constants.DateFormat) {
			if _, err := time.Parse(constants.DateFormat, through[:len(constants.DateFormat)]); err == nil {
				return ptr.String(through[:len(constants.DateFormat)])
			}
		}
	}
	if expirationMillis != "" {
		if ms, err := strconv.ParseInt(expirationMillis, 10, 64); err == nil && ms > 0 {
			return ptr.String(time.UnixMilli(ms).UTC().Format(constants.DateFormat))
		}
	}
	return nil
}
