package domain

import "errors"

// Status is the persisted lifecycle status of a project. It is the single
// canonical vocabulary; the builder derives its UI stage from it.
type Status string

const (
	StatusIdea      Status = "idea"
	StatusBuilding  Status = "building"
	StatusPreview   Status = "preview"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdea, StatusBuilding, StatusPreview, StatusPublished:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("project not found")
	ErrNoID            = errors.New("project has no id")
	ErrIndexOutOfRange = errors.New("feature index out of range")
)

// Project is the single mutable entity of the builder workflow.
// ID is empty until the first successful store write; user_id is set once
// at creation and never mutated.
type Project struct {
	ID              string            `json:"id,omitempty"`
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"`
	BusinessDetails string            `json:"business_details"`
	AppIdea         string            `json:"app_idea"`
	Features        []string          `json:"features"`
	Status          Status            `json:"status"`
	SketchData      string            `json:"sketch_data,omitempty"`
	WhiteboardImage string            `json:"whiteboard_image,omitempty"`
	GeneratedCode   map[string]string `json:"generated_code,omitempty"`
	PublishedURL    string            `json:"published_url,omitempty"`
	PreviewURL      string            `json:"preview_url,omitempty"`
	CreatedAt       string            `json:"created_at,omitempty"`
	UpdatedAt       string            `json:"updated_at,omitempty"`
}

// New returns an in-memory draft project for a user. It has no ID until
// the record store assigns one.
func New(userID string) *Project {
	return &Project{
		UserID:   userID,
		Status:   StatusIdea,
		Features: []string{},
	}
}

// NormalizeFeatures guarantees Features is never nil. Applied at every
// read site so workflow logic can range over it unconditionally.
func (p *Project) NormalizeFeatures() {
	if p.Features == nil {
		p.Features = []string{}
	}
}

// AddFeature appends a feature, preserving presentation order.
func (p *Project) AddFeature(feature string) {
	p.NormalizeFeatures()
	p.Features = append(p.Features, feature)
}

// RemoveFeature removes the feature at index i, keeping the order of the
// remaining entries.
func (p *Project) RemoveFeature(i int) error {
	p.NormalizeFeatures()
	if i < 0 || i >= len(p.Features) {
		return ErrIndexOutOfRange
	}
	p.Features = append(p.Features[:i], p.Features[i+1:]...)
	return nil
}

// SetGeneratedCode replaces the code mapping wholesale. A nil map is
// normalized to an empty one: generated_code is always a valid mapping
// once constructed.
func (p *Project) SetGeneratedCode(files map[string]string) {
	if files == nil {
		files = map[string]string{}
	}
	p.GeneratedCode = files
}
