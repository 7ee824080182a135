// Package snipetest provides an in-memory Snipe-IT API for tests.
package snipetest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// Ref mirrors the {id, name} objects of the API.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Model is a stored model.
type Model struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	CategoryID int    `json:"-"`
	FieldsetID int    `json:"-"`
}

// User is a stored user.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Asset is a stored hardware record with the last payload written to it.
type Asset struct {
	ID       int
	AssetTag string
	Serial   string
	Fields   map[string]any
}

// Call is one request seen by the server.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// Server is a fake Snipe-IT instance. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	Token string

	// Fail, when set, may force a status for a request. Return 0 to pass.
	Fail func(r *http.Request) int

	mu         sync.Mutex
	nextID     int
	models     []*Model
	statuses   []Ref
	categories []Ref
	users      []User
	assets     []*Asset
	calls      []Call
}

// New starts a fake server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{nextID: 1000}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the api/v1 root.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

// AddModel seeds a model.
func (s *Server) AddModel(id int, name string, categoryID, fieldsetID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = append(s.models, &Model{ID: id, Name: name, CategoryID: categoryID, FieldsetID: fieldsetID})
}

// AddStatus seeds a status label.
func (s *Server) AddStatus(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, Ref{ID: id, Name: name})
}

// AddCategory seeds a category.
func (s *Server) AddCategory(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, Ref{ID: id, Name: name})
}

// AddUser seeds a user.
func (s *Server) AddUser(id int, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, User{ID: id, Name: email, Email: email})
}

// AddAsset seeds a hardware record.
func (s *Server) AddAsset(id int, assetTag, serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, &Asset{ID: id, AssetTag: assetTag, Serial: serial, Fields: map[string]any{}})
}

// Asset returns a copy of the asset with serial, or nil.
func (s *Server) Asset(serial string) *Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.Serial == serial {
			cp := *a
			return &cp
		}
	}
	return nil
}

// Model returns a copy of the model named name, or nil.
func (s *Server) Model(name string) *Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.Name == name {
			cp := *m
			return &cp
		}
	}
	return nil
}

// Calls returns every request seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many requests matched method and path.
// A path ending in "/" matches any path with that prefix.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method != method {
			continue
		}
		if c.Path == path || (strings.HasSuffix(path, "/") && strings.HasPrefix(c.Path, path)) {
			n++
		}
	}
	return n
}

// Writes counts POST and PATCH requests.
func (s *Server) Writes() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == http.MethodPost || c.Method == http.MethodPatch {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	call := Call{Method: r.Method, Path: path, Query: r.URL.RawQuery}
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.Body)
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "messages": "Unauthorized."})
		return
	}
	if s.Fail != nil {
		if code := s.Fail(r); code != 0 {
			writeJSON(w, code, map[string]any{"status": "error", "messages": http.StatusText(code)})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(path, "/")
	q := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && path == "hardware":
		s.searchHardware(w, q.Get("search"))
	case r.Method == http.MethodPost && path == "hardware":
		s.createHardware(w, call.Body)
	case r.Method == http.MethodPatch && len(parts) == 2 && parts[0] == "hardware":
		s.updateHardware(w, parts[1], call.Body)
	case r.Method == http.MethodGet && path == "models":
		s.searchModels(w, q.Get("search"))
	case r.Method == http.MethodPost && path == "models":
		s.createModel(w, call.Body)
	case len(parts) == 2 && parts[0] == "models":
		s.model(w, r.Method, parts[1], call.Body)
	case r.Method == http.MethodGet && path == "statuslabels":
		writeRows(w, filterRefs(s.statuses, q.Get("name")))
	case r.Method == http.MethodGet && path == "categories":
		writeRows(w, filterRefs(s.categories, q.Get("name")))
	case r.Method == http.MethodGet && path == "users":
		var rows []User
		for _, u := range s.users {
			if strings.EqualFold(u.Email, q.Get("email")) {
				rows = append(rows, u)
			}
		}
		writeRows(w, rows)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "messages": "404 endpoint not found"})
	}
}

func (s *Server) searchHardware(w http.ResponseWriter, term string) {
	var rows []map[string]any
	for _, a := range s.assets {
		if term == "" || strings.Contains(a.AssetTag, term) || strings.Contains(a.Serial, term) {
			rows = append(rows, assetJSON(a))
		}
	}
	writeRows(w, rows)
}

func (s *Server) createHardware(w http.ResponseWriter, body map[string]any) {
	tag, _ := body["asset_tag"].(string)
	serial, _ := body["serial"].(string)
	messages := map[string][]string{}
	for _, a := range s.assets {
		if tag != "" && a.AssetTag == tag {
			messages["asset_tag"] = []string{"The asset tag must be unique."}
		}
		if serial != "" && a.Serial == serial {
			messages["serial"] = []string{"The serial must be unique."}
		}
	}
	if _, ok := body["model_id"]; !ok {
		messages["model_id"] = []string{"The model id field is required."}
	}
	if len(messages) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "messages": messages, "payload": nil})
		return
	}
	s.nextID++
	a := &Asset{ID: s.nextID, AssetTag: tag, Serial: serial, Fields: body}
	s.assets = append(s.assets, a)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "messages": "Asset created successfully.", "payload": assetJSON(a)})
}

func (s *Server) updateHardware(w http.ResponseWriter, rawID string, body map[string]any) {
	id, _ := strconv.Atoi(rawID)
	for _, a := range s.assets {
		if a.ID == id {
			for k, v := range body {
				a.Fields[k] = v
			}
			if tag, ok := body["asset_tag"].(string); ok {
				a.AssetTag = tag
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "messages": "Asset updated successfully.", "payload": assetJSON(a)})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "error", "messages": "Asset does not exist.", "payload": nil})
}

func (s *Server) searchModels(w http.ResponseWriter, term string) {
	var rows []map[string]any
	for _, m := range s.models {
		if strings.Contains(strings.ToLower(m.Name), strings.ToLower(term)) {
			rows = append(rows, s.modelJSON(m))
		}
	}
	writeRows(w, rows)
}

func (s *Server) createModel(w http.ResponseWriter, body map[string]any) {
	name, _ := body["name"].(string)
	if name == "" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "messages": map[string][]string{"name": {"The name field is required."}}})
		return
	}
	s.nextID++
	m := &Model{ID: s.nextID, Name: name, CategoryID: intOf(body["category_id"]), FieldsetID: intOf(body["fieldset_id"])}
	s.models = append(s.models, m)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "messages": "Model created.", "payload": s.modelJSON(m)})
}

func (s *Server) model(w http.ResponseWriter, method, rawID string, body map[string]any) {
	id, _ := strconv.Atoi(rawID)
	for _, m := range s.models {
		if m.ID != id {
			continue
		}
		if method == http.MethodPatch {
			if v, ok := body["fieldset_id"]; ok {
				m.FieldsetID = intOf(v)
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "messages": "Model updated.", "payload": s.modelJSON(m)})
			return
		}
		writeJSON(w, http.StatusOK, s.modelJSON(m))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "error", "messages": "Model not found"})
}

func (s *Server) modelJSON(m *Model) map[string]any {
	out := map[string]any{"id": m.ID, "name": m.Name}
	if m.CategoryID != 0 {
		out["category"] = map[string]any{"id": m.CategoryID, "name": s.refName(s.categories, m.CategoryID)}
	}
	if m.FieldsetID != 0 {
		out["fieldset"] = map[string]any{"id": m.FieldsetID, "name": "fieldset"}
	} else {
		out["fieldset"] = nil
	}
	return out
}

func (s *Server) refName(refs []Ref, id int) string {
	for _, r := range refs {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func assetJSON(a *Asset) map[string]any {
	return map[string]any{"id": a.ID, "asset_tag": a.AssetTag, "serial": a.Serial, "name": a.AssetTag}
}

// filterRefs mimics the API name filter, which is a case-insensitive equality.
func filterRefs(refs []Ref, name string) []Ref {
	var out []Ref
	for _, r := range refs {
		if strings.EqualFold(r.Name, name) {
			out = append(out, r)
		}
	}
	return out
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func writeRows[T any](w http.ResponseWriter, rows []T) {
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(rows), "rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
