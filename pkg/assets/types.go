// Package assets talks to the Snipe-IT REST API and keeps the run-scoped
// lookup cache used while reconciling devices.
package assets

import (
	"strings"

	"github.com/goccy/go-json"
)

// Ref is the {id, name} pair Snipe-IT nests inside resources.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Hardware is an asset record.
type Hardware struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	AssetTag    string `json:"asset_tag"`
	Serial      string `json:"serial"`
	Model       *Ref   `json:"model,omitempty"`
	StatusLabel *Ref   `json:"status_label,omitempty"`
}

// Model is a hardware model record.
type Model struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category *Ref   `json:"category,omitempty"`
	Fieldset *Ref   `json:"fieldset,omitempty"`
}

// User is a Snipe-IT user.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Payload is the body for hardware create and update. Custom fields use
// their database column names as keys.
type Payload map[string]any

// ModelEntry is what the run learned about one product name.
type ModelEntry struct {
	Name             string `json:"name" yaml:"name"`
	ID               int    `json:"id" yaml:"id"`
	CategoryID       int    `json:"category_id" yaml:"category_id"`
	FieldsetAssigned bool   `json:"fieldset_assigned" yaml:"fieldset_assigned"`
	// Planned marks a model that a dry run would have created.
	Planned bool `json:"planned" yaml:"planned"`
}

// listEnvelope is the shape of every Snipe-IT collection response.
type listEnvelope[T any] struct {
	Total    int             `json:"total"`
	Rows     []T             `json:"rows"`
	Status   string          `json:"status"`
	Messages json.RawMessage `json:"messages"`
}

// mutationEnvelope wraps create and update responses. Snipe-IT answers
// HTTP 200 with status "error" on validation failure.
type mutationEnvelope[T any] struct {
	Status   string          `json:"status"`
	Messages json.RawMessage `json:"messages"`
	Payload  *T              `json:"payload"`
}

const statusSuccess = "success"

// parseMessages decodes the messages field, which is either a string or an
// object of field -> string | []string.
func parseMessages(raw json.RawMessage) (string, map[string][]string) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strings.TrimSpace(string(raw)), nil
	}
	fields := make(map[string][]string, len(obj))
	for k, v := range obj {
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			fields[k] = list
			continue
		}
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			fields[k] = []string{one}
			continue
		}
		fields[k] = []string{string(v)}
	}
	return "", fields
}
