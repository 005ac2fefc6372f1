package whiteboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MalformedReturnsEmptyScene(t *testing.T) {
	for _, data := range []string{"", "   ", "{not json", "[1,2", "null"} {
		scene := Decode(data)
		require.NotNil(t, scene, data)
		assert.True(t, scene.Empty(), data)
		assert.NotNil(t, scene.Elements, data)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	in := `{"elements":[{"type":"rectangle","x":10},{"type":"arrow"}],"appState":{"zoom":1.5}}`

	scene := Decode(in)
	require.Len(t, scene.Elements, 2)
	assert.False(t, scene.Empty())
	assert.Equal(t, 1.5, scene.AppState["zoom"])

	out, err := Encode(scene)
	require.NoError(t, err)

	again := Decode(out)
	assert.Equal(t, scene.Elements, again.Elements)
	assert.Equal(t, scene.AppState, again.AppState)
}

func TestEncode_NilScene(t *testing.T) {
	out, err := Encode(nil)
	require.NoError(t, err)

	var scene SceneGraph
	require.NoError(t, json.Unmarshal([]byte(out), &scene))
	assert.Empty(t, scene.Elements)
}

func TestEncode_NilElementsBecomeEmptyArray(t *testing.T) {
	out, err := Encode(&SceneGraph{})
	require.NoError(t, err)
	assert.Contains(t, out, `"elements":[]`)
}

func TestValidSnapshot(t *testing.T) {
	assert.True(t, ValidSnapshot("data:image/png;base64,AAAA"))
	assert.True(t, ValidSnapshot("data:image/jpeg;base64,BBBB"))
	assert.False(t, ValidSnapshot("data:text/plain;base64,CCCC"))
	assert.False(t, ValidSnapshot("https://example.com/a.png"))
	assert.False(t, ValidSnapshot(""))
}
