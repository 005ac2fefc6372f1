// Package whiteboard is the narrow boundary around the client-side
// drawing canvas. The backend never interprets shapes; it decodes,
// validates and re-encodes the scene graph as an opaque structure.
package whiteboard

import (
	"encoding/json"
	"log"
	"strings"
)

// SceneGraph is the canvas's serializable description of drawn elements.
// Element and AppState contents are owned by the drawing library and kept
// opaque here.
type SceneGraph struct {
	Elements []json.RawMessage      `json:"elements"`
	AppState map[string]interface{} `json:"appState,omitempty"`
}

// Empty reports whether the scene has no drawn elements.
func (s *SceneGraph) Empty() bool {
	return s == nil || len(s.Elements) == 0
}

// Encode serializes a scene graph for storage.
func Encode(s *SceneGraph) (string, error) {
	if s == nil {
		s = &SceneGraph{Elements: []json.RawMessage{}}
	}
	if s.Elements == nil {
		s.Elements = []json.RawMessage{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored scene graph. Restoration is best-effort:
// malformed input is logged and an empty scene returned so the canvas
// never crashes on bad data.
func Decode(data string) *SceneGraph {
	empty := &SceneGraph{Elements: []json.RawMessage{}}
	if strings.TrimSpace(data) == "" {
		return empty
	}

	var scene SceneGraph
	if err := json.Unmarshal([]byte(data), &scene); err != nil {
		log.Printf("[whiteboard] ignoring malformed sketch data: %v", err)
		return empty
	}
	if scene.Elements == nil {
		scene.Elements = []json.RawMessage{}
	}
	return &scene
}

// ValidSnapshot reports whether s looks like a rasterized canvas
// snapshot (an image data URL).
func ValidSnapshot(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}
