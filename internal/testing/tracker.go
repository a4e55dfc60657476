package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FakeTracker is an in-memory tracker API served over HTTP. It implements
// the paginated listing, group, template and providertemplate endpoints
// used by the tracker client.
type FakeTracker struct {
	Server *httptest.Server

	// PageSize caps every listing page regardless of the requested limit.
	PageSize int

	mu        sync.Mutex
	groups    map[string]string // name -> stream
	templates map[string]fakeTemplate
	assocs    map[string]fakeAssoc
	failures  map[string]int
	requests  []string
}

type fakeTemplate struct {
	Name      string
	Group     string
	Datestamp string
}

type fakeAssoc struct {
	Provider string
	Template string
	Usable   *bool
}

// NewFakeTracker starts a fake tracker; it is closed when the test ends.
func NewFakeTracker(t interface{ Cleanup(func()) }) *FakeTracker {
	ft := &FakeTracker{
		PageSize:  2,
		groups:    map[string]string{},
		templates: map[string]fakeTemplate{},
		assocs:    map[string]fakeAssoc{},
		failures:  map[string]int{},
	}
	ft.Server = httptest.NewServer(http.HandlerFunc(ft.serve))
	t.Cleanup(ft.Server.Close)
	return ft
}

// URL returns the API root.
func (ft *FakeTracker) URL() string {
	return ft.Server.URL + "/api/"
}

// Seed creates an association (and its template) directly.
func (ft *FakeTracker) Seed(templateName, providerKey string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if _, ok := ft.templates[templateName]; !ok {
		ft.templates[templateName] = fakeTemplate{Name: templateName}
	}
	ft.assocs[templateName+"_"+providerKey] = fakeAssoc{Provider: providerKey, Template: templateName}
}

// SeedTemplate creates a template without associations.
func (ft *FakeTracker) SeedTemplate(templateName string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.templates[templateName] = fakeTemplate{Name: templateName}
}

// FailWith makes every request matching "METHOD /path" answer with status.
func (ft *FakeTracker) FailWith(method, path string, status int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.failures[method+" "+path] = status
}

// Associations returns the sorted association ids.
func (ft *FakeTracker) Associations() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ids := make([]string, 0, len(ft.assocs))
	for id := range ft.assocs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Usable returns the usable flag stored on an association.
func (ft *FakeTracker) Usable(id string) *bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.assocs[id].Usable
}

// Templates returns the sorted template names.
func (ft *FakeTracker) Templates() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	names := make([]string, 0, len(ft.templates))
	for n := range ft.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Groups returns group name -> stream.
func (ft *FakeTracker) Groups() map[string]string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make(map[string]string, len(ft.groups))
	for k, v := range ft.groups {
		out[k] = v
	}
	return out
}

// Requests returns every "METHOD /path" received, in order.
func (ft *FakeTracker) Requests() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.requests...)
}

// CountRequests returns how many requests started with prefix.
func (ft *FakeTracker) CountRequests(prefix string) int {
	n := 0
	for _, r := range ft.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (ft *FakeTracker) serve(w http.ResponseWriter, r *http.Request) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.requests = append(ft.requests, r.Method+" "+r.URL.Path)
	if status, ok := ft.failures[r.Method+" "+r.URL.Path]; ok {
		http.Error(w, "injected failure", status)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/"), "/")
	resource, id := parts[0], ""
	if len(parts) > 1 {
		id = parts[1]
	}

	switch {
	case resource == "providertemplate" && id == "" && r.Method == http.MethodGet:
		ft.listAssocs(w, r)
	case resource == "providertemplate" && id == "" && r.Method == http.MethodPost:
		ft.createAssoc(w, r)
	case resource == "providertemplate" && id != "" && r.Method == http.MethodDelete:
		if _, ok := ft.assocs[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(ft.assocs, id)
		w.WriteHeader(http.StatusNoContent)
	case resource == "template" && id == "" && r.Method == http.MethodGet:
		ft.listTemplates(w, r)
	case resource == "template" && id != "" && r.Method == http.MethodDelete:
		if _, ok := ft.templates[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(ft.templates, id)
		w.WriteHeader(http.StatusNoContent)
	case resource == "group" && id != "" && r.Method == http.MethodGet:
		stream, ok := ft.groups[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": id, "stream": stream})
	case resource == "group" && id == "" && r.Method == http.MethodPost:
		var g struct {
			Name   string `json:"name"`
			Stream string `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil || g.Name == "" {
			http.Error(w, "bad group", http.StatusBadRequest)
			return
		}
		ft.groups[g.Name] = g.Stream
		w.WriteHeader(http.StatusCreated)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (ft *FakeTracker) createAssoc(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider struct {
			Key string `json:"key"`
		} `json:"provider"`
		Template struct {
			Name  string `json:"name"`
			Group struct {
				Name string `json:"name"`
			} `json:"group"`
			Datestamp string `json:"datestamp"`
		} `json:"template"`
		Usable *bool `json:"usable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := ft.groups[body.Template.Group.Name]; !ok {
		http.Error(w, "unknown group", http.StatusBadRequest)
		return
	}

	id := body.Template.Name + "_" + body.Provider.Key
	if _, dup := ft.assocs[id]; dup {
		http.Error(w, "duplicate association", http.StatusConflict)
		return
	}
	ft.templates[body.Template.Name] = fakeTemplate{
		Name:      body.Template.Name,
		Group:     body.Template.Group.Name,
		Datestamp: body.Template.Datestamp,
	}
	ft.assocs[id] = fakeAssoc{Provider: body.Provider.Key, Template: body.Template.Name, Usable: body.Usable}
	w.WriteHeader(http.StatusCreated)
}

func (ft *FakeTracker) listAssocs(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(ft.assocs))
	for id := range ft.assocs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	objects := make([]any, 0, len(ids))
	for _, id := range ids {
		a := ft.assocs[id]
		objects = append(objects, map[string]any{
			"id":       id,
			"provider": map[string]string{"key": a.Provider},
			"template": map[string]string{"name": a.Template},
			"usable":   a.Usable,
		})
	}
	ft.writePage(w, r, objects)
}

func (ft *FakeTracker) listTemplates(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(ft.templates))
	for n := range ft.templates {
		names = append(names, n)
	}
	sort.Strings(names)

	objects := make([]any, 0, len(names))
	for _, n := range names {
		providers := []string{}
		for _, a := range ft.assocs {
			if a.Template == n {
				providers = append(providers, a.Provider)
			}
		}
		sort.Strings(providers)
		objects = append(objects, map[string]any{
			"name":      n,
			"datestamp": ft.templates[n].Datestamp,
			"providers": providers,
		})
	}
	ft.writePage(w, r, objects)
}

func (ft *FakeTracker) writePage(w http.ResponseWriter, r *http.Request, objects []any) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || (ft.PageSize > 0 && limit > ft.PageSize) {
		limit = ft.PageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset > len(objects) {
		offset = len(objects)
	}
	end := offset + limit
	if limit <= 0 || end > len(objects) {
		end = len(objects)
	}

	var next *string
	if end < len(objects) {
		n := fmt.Sprintf("%s?limit=%d&offset=%d", r.URL.Path, limit, end)
		next = &n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meta": map[string]any{
			"limit":       limit,
			"offset":      offset,
			"next":        next,
			"total_count": len(objects),
		},
		"objects": objects[offset:end],
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
