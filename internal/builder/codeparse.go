package builder

import "encoding/json"

// fallbackFileName holds the whole response when it cannot be parsed as a
// file mapping.
const fallbackFileName = "app.js"

// ParseGeneratedCode converts a raw code-generation response into a file
// mapping. The model is asked for {"files": {path: content}} but may
// return a bare mapping or arbitrary text, so parsing is three-tier:
//
//  1. parse as JSON; if a "files" property exists, work on its value
//  2. parse the working string as a path->content mapping
//  3. wrap the entire raw response as one synthetic file
//
// It never fails: any input yields a valid non-nil mapping.
func ParseGeneratedCode(raw string) map[string]string {
	working := raw

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapper); err == nil {
		if inner, ok := wrapper["files"]; ok {
			working = string(inner)
		}
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(working), &files); err == nil && files != nil {
		return files
	}

	return map[string]string{fallbackFileName: raw}
}
