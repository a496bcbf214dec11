package links

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/clonehub/internal/utils"
)

func TestClassify_SplitsVideoAndOther(t *testing.T) {
	video, other, err := Classify([]RawLink{
		Raw("https://youtube.com/x"),
		Raw("https://example.com/y"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtube.com/x"}, video)
	assert.Equal(t, []string{"https://example.com/y"}, other)
}

func TestClassify_Empty(t *testing.T) {
	video, other, err := Classify(nil)
	require.NoError(t, err)
	assert.Empty(t, video)
	assert.Empty(t, other)
	assert.NotNil(t, video)
	assert.NotNil(t, other)
}

func TestClassify_CaseInsensitiveAndShortHost(t *testing.T) {
	video, other, err := Classify([]RawLink{
		Wrapped("https://WWW.YouTube.COM/watch?v=abc"),
		Raw("https://youtu.be/abc"),
		Wrapped(" https://vimeo.com/1 "),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://WWW.YouTube.COM/watch?v=abc", "https://youtu.be/abc"}, video)
	assert.Equal(t, []string{"https://vimeo.com/1"}, other)
}

func TestClassify_PartitionIsExhaustive(t *testing.T) {
	in := []RawLink{
		Raw("https://youtube.com/a"),
		Raw("https://blog.example.org/post"),
		Wrapped("https://m.youtube.com/b"),
		Raw("http://docs.example.com"),
		Wrapped("https://github.com/yoockh"),
	}
	video, other, err := Classify(in)
	require.NoError(t, err)
	assert.Len(t, append(video, other...), len(in))

	seen := map[string]bool{}
	for _, v := range video {
		seen[v] = true
	}
	for _, o := range other {
		assert.False(t, seen[o], "link %q in both buckets", o)
	}
}

func TestClassify_RejectsInvalidLink(t *testing.T) {
	_, _, err := Classify([]RawLink{Raw("https://ok.example.com"), Raw("not a url")})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestRawLink_UnmarshalJSON(t *testing.T) {
	var got []RawLink
	require.NoError(t, json.Unmarshal([]byte(`["https://a.example.com", {"value": "https://youtube.com/v"}]`), &got))
	assert.Equal(t, []RawLink{Raw("https://a.example.com"), Wrapped("https://youtube.com/v")}, got)

	var bad []RawLink
	err := json.Unmarshal([]byte(`[42]`), &bad)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`[{"url": "https://x.example.com"}]`), &bad)
	require.Error(t, err)
}

func TestRawLink_MarshalRoundTripKeepsShape(t *testing.T) {
	b, err := json.Marshal([]RawLink{Raw("https://a.example.com"), Wrapped("https://b.example.com")})
	require.NoError(t, err)
	assert.JSONEq(t, `["https://a.example.com", {"value": "https://b.example.com"}]`, string(b))
}

func TestParseFormValues(t *testing.T) {
	got, err := ParseFormValues([]string{
		"https://youtube.com/x",
		`["https://a.example.com", {"value": "https://b.example.com"}]`,
		`{"value": "https://c.example.com"}`,
		"  ",
	})
	require.NoError(t, err)
	assert.Equal(t, []RawLink{
		Raw("https://youtube.com/x"),
		Raw("https://a.example.com"),
		Wrapped("https://b.example.com"),
		Wrapped("https://c.example.com"),
	}, got)
}

func TestParseFormValues_Malformed(t *testing.T) {
	_, err := ParseFormValues([]string{`["https://a.example.com"`})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
