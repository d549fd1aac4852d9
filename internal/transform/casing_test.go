package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "_items", want: "items"},
		{in: "profile_image", want: "profileImage"},
		{in: "active-at", want: "activeAt"},
		{in: "created__at", want: "createdAt"},
		{in: "group name", want: "groupName"},
		{in: "trailing_", want: "trailing"},
		{in: "Already", want: "already"},
		{in: "camelCase", want: "camelCase"},
		{in: "42", want: "42"},
		{in: "1.5", want: "1.5"},
		{in: "0x1f", want: "0x1f"},
		{in: "", want: ""},
		{in: "_meta_total", want: "metaTotal"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Camelize(tt.in))
		})
	}
}

func TestCamelizeKeys(t *testing.T) {
	t.Parallel()

	raw := `{
		"_items": [
			{"profile_image": "a.png", "nick_name": "x", "tags": [{"tag_id": 1}]}
		],
		"_meta": {"total_count": 1},
		"value_list": ["keep_me", 2, null, true]
	}`

	var decoded any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	got := CamelizeKeys(decoded)

	want := map[string]any{
		"items": []any{
			map[string]any{
				"profileImage": "a.png",
				"nickName":     "x",
				"tags":         []any{map[string]any{"tagId": float64(1)}},
			},
		},
		"meta":      map[string]any{"totalCount": float64(1)},
		"valueList": []any{"keep_me", float64(2), nil, true},
	}
	assert.Equal(t, want, got)
}

func TestCamelizeKeys_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := map[string]any{"user_id": 1}
	CamelizeKeys(in)

	assert.Contains(t, in, "user_id")
	assert.NotContains(t, in, "userId")
}

func TestTransformKeys_Scalars(t *testing.T) {
	t.Parallel()

	for _, v := range []any{"str", float64(3), true, nil} {
		assert.Equal(t, v, CamelizeKeys(v))
	}
}
