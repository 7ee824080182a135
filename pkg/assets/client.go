package assets

import (
	"context"
	"net/url"
	"strconv"

	"github.com/agentstation/assetsync/internal/transport"
	"github.com/agentstation/assetsync/pkg/errors"
)

const service = "snipe-it"

// Sender is the subset of the transport client used here.
type Sender interface {
	Send(ctx context.Context, r transport.Request) (*transport.Response, error)
}

// Client is a thin typed wrapper over the Snipe-IT api/v1 endpoints.
type Client struct {
	sender Sender
}

// NewClient creates a Client. sender must be based at .../api/v1 with bearer auth.
func NewClient(sender Sender) *Client {
	return &Client{sender: sender}
}

// SearchHardware searches assets in every status.
func (c *Client) SearchHardware(ctx context.Context, term string) ([]Hardware, error) {
	return list[Hardware](ctx, c.sender, "hardware", url.Values{"search": {term}, "status": {"all"}})
}

// SearchModels runs a free-text model search.
func (c *Client) SearchModels(ctx context.Context, term string) ([]Model, error) {
	return list[Model](ctx, c.sender, "models", url.Values{"search": {term}})
}

// StatusLabels filters status labels by name.
func (c *Client) StatusLabels(ctx context.Context, name string) ([]Ref, error) {
	return list[Ref](ctx, c.sender, "statuslabels", url.Values{"name": {name}})
}

// Categories filters categories by name.
func (c *Client) Categories(ctx context.Context, name string) ([]Ref, error) {
	return list[Ref](ctx, c.sender, "categories", url.Values{"name": {name}})
}

// Users filters users by email.
func (c *Client) Users(ctx context.Context, email string) ([]User, error) {
	return list[User](ctx, c.sender, "users", url.Values{"email": {email}})
}

// GetModel fetches one model.
func (c *Client) GetModel(ctx context.Context, id int) (*Model, error) {
	path := "models/" + strconv.Itoa(id)
	resp, err := c.sender.Send(ctx, transport.Get(path, nil))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 404 {
		return nil, errors.NewNotFoundError("model", strconv.Itoa(id))
	}
	if !resp.OK() {
		return nil, errors.NewAPIError(service, path, resp.StatusCode, resp.Snippet())
	}
	var env struct {
		Model
		Status string `json:"status"`
	}
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.Status == "error" {
		return nil, errors.NewNotFoundError("model", strconv.Itoa(id))
	}
	return &env.Model, nil
}

// CreateModel creates a model in categoryID with fieldsetID attached.
func (c *Client) CreateModel(ctx context.Context, name string, categoryID, fieldsetID int) (*Model, error) {
	body := map[string]any{"name": name, "category_id": categoryID}
	if fieldsetID > 0 {
		body["fieldset_id"] = fieldsetID
	}
	return mutate[Model](ctx, c.sender, transport.Post("models", body))
}

// SetModelFieldset attaches fieldsetID to a model.
func (c *Client) SetModelFieldset(ctx context.Context, modelID, fieldsetID int) error {
	_, err := mutate[Model](ctx, c.sender, transport.Patch("models/"+strconv.Itoa(modelID), map[string]any{"fieldset_id": fieldsetID}))
	return err
}

// CreateHardware creates an asset.
func (c *Client) CreateHardware(ctx context.Context, p Payload) (*Hardware, error) {
	return mutate[Hardware](ctx, c.sender, transport.Post("hardware", p))
}

// UpdateHardware patches asset id.
func (c *Client) UpdateHardware(ctx context.Context, id int, p Payload) (*Hardware, error) {
	return mutate[Hardware](ctx, c.sender, transport.Patch("hardware/"+strconv.Itoa(id), p))
}

func list[T any](ctx context.Context, s Sender, path string, q url.Values) ([]T, error) {
	resp, err := s.Send(ctx, transport.Get(path, q))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errors.NewAPIError(service, path, resp.StatusCode, resp.Snippet())
	}
	var env listEnvelope[T]
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.Status == "error" {
		apiErr := errors.NewAPIError(service, path, resp.StatusCode, "")
		apiErr.Message, apiErr.Messages = parseMessages(env.Messages)
		return nil, apiErr
	}
	return env.Rows, nil
}

func mutate[T any](ctx context.Context, s Sender, r transport.Request) (*T, error) {
	resp, err := s.Send(ctx, r)
	if err != nil {
		return nil, err
	}
	var env mutationEnvelope[T]
	if decodeErr := resp.Decode(&env); decodeErr != nil {
		if !resp.OK() {
			return nil, errors.NewAPIError(service, r.Path, resp.StatusCode, resp.Snippet())
		}
		return nil, decodeErr
	}
	if !resp.OK() || env.Status != statusSuccess {
		apiErr := errors.NewAPIError(service, r.Path, resp.StatusCode, "")
		apiErr.Message, apiErr.Messages = parseMessages(env.Messages)
		if apiErr.Message == "" && apiErr.Messages == nil {
			apiErr.Message = resp.Snippet()
		}
		return nil, apiErr
	}
	if env.Payload == nil {
		return new(T), nil
	}
	return env.Payload, nil
}
