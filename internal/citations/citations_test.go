package citations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStrings(t *testing.T) {
	raw := json.RawMessage(`["Smith 2021", "data:image/png;base64,AAAA"]`)
	items := Normalize(raw)
	require.Len(t, items, 2)
	assert.Equal(t, TextItem("Smith 2021"), items[0])
	assert.Equal(t, KindImage, items[1].Kind)
	assert.Equal(t, "data:image/png;base64,AAAA", items[1].URL)
}

func TestNormalizeLegacyObjects(t *testing.T) {
	raw := json.RawMessage(`[
		{"text": "a cited prompt"},
		{"label": "labelled prompt"},
		{"src": "data:image/jpeg;base64,BBBB", "altText": "screenshot"},
		{"url": "data:image/png;base64,CCCC", "alt": "evidence"}
	]`)
	items := Normalize(raw)
	require.Len(t, items, 4)
	assert.Equal(t, TextItem("a cited prompt"), items[0])
	assert.Equal(t, TextItem("labelled prompt"), items[1])
	assert.Equal(t, ImageItem("data:image/jpeg;base64,BBBB", "screenshot"), items[2])
	assert.Equal(t, ImageItem("data:image/png;base64,CCCC", "evidence"), items[3])
}

func TestNormalizeDropsJunk(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize(json.RawMessage(`null`)))
	assert.Nil(t, Normalize(json.RawMessage(`[]`)))
	assert.Nil(t, Normalize(json.RawMessage(`[{}, "", 42]`)))
}

func TestNormalizeBareString(t *testing.T) {
	items := Normalize(json.RawMessage(`"just one citation"`))
	require.Len(t, items, 1)
	assert.Equal(t, TextItem("just one citation"), items[0])
}

func TestNormalizeRoundTrip(t *testing.T) {
	in := []Item{TextItem("ref"), ImageItem("data:image/png;base64,DD", "alt")}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	out := Normalize(b)
	assert.Equal(t, in, out)
}
