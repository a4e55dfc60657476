package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resource names exposed by the tracker API.
const (
	ResourceProvider         = "provider"
	ResourceGroup            = "group"
	ResourceTemplate         = "template"
	ResourceProviderTemplate = "providertemplate"
)

const datestampLayout = "2006-01-02"

// Group is a family of templates sharing a build stream.
type Group struct {
	Name   string `json:"name"`
	Stream string `json:"stream,omitempty"`
}

// Provider identifies a provider on the tracker.
type Provider struct {
	Key string `json:"key"`
}

// Template is a template to be associated with providers.
type Template struct {
	Name      string
	Group     Group
	Datestamp time.Time
}

// NewTemplate validates and returns a Template. Templates need a name, a
// group and a build datestamp.
func NewTemplate(name string, group Group, datestamp time.Time) (Template, error) {
	var errs []error
	if strings.TrimSpace(name) == "" {
		errs = append(errs, errors.New("template name is empty"))
	}
	if group.Name == "" {
		errs = append(errs, errors.New("template group is empty"))
	}
	if datestamp.IsZero() {
		errs = append(errs, errors.New("template datestamp is missing"))
	}
	if err := errors.Join(errs...); err != nil {
		return Template{}, fmt.Errorf("invalid template %q: %w", name, err)
	}
	return Template{Name: name, Group: group, Datestamp: datestamp}, nil
}

// ProviderTemplateID returns the tracker id of a provider/template
// association.
func ProviderTemplateID(templateName, providerKey string) string {
	return templateName + "_" + providerKey
}

// TemplateRecord is a template as returned by the tracker.
type TemplateRecord struct {
	Name      string            `json:"name"`
	Group     *Group            `json:"group,omitempty"`
	Datestamp string            `json:"datestamp,omitempty"`
	Providers []json.RawMessage `json:"providers"`
}

// ProviderTemplateRecord is a provider/template association as returned by
// the tracker.
type ProviderTemplateRecord struct {
	ID       string `json:"id"`
	Provider struct {
		Key string `json:"key"`
	} `json:"provider"`
	Template struct {
		Name string `json:"name"`
	} `json:"template"`
	Usable *bool `json:"usable,omitempty"`
	Tested *bool `json:"tested,omitempty"`
}

// AssociationID returns the record id, deriving it when the tracker omitted it.
func (r ProviderTemplateRecord) AssociationID() string {
	if r.ID != "" {
		return r.ID
	}
	return ProviderTemplateID(r.Template.Name, r.Provider.Key)
}

// page is one page of a listing.
type page struct {
	Meta struct {
		Limit      int     `json:"limit"`
		Next       *string `json:"next"`
		Offset     int     `json:"offset"`
		TotalCount int     `json:"total_count"`
	} `json:"meta"`
	Objects []json.RawMessage `json:"objects"`
}

type providerTemplatePayload struct {
	Provider Provider        `json:"provider"`
	Template templatePayload `json:"template"`
	Usable   *bool           `json:"usable,omitempty"`
}

type templatePayload struct {
	Name      string `json:"name"`
	Group     Group  `json:"group"`
	Datestamp string `json:"datestamp"`
}
