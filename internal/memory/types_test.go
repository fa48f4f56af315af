package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: DefaultCategory},
		{in: "  ", want: DefaultCategory},
		{in: "Bug Fix", want: "bug_fix"},
		{in: "post-mortem", want: "post_mortem"},
		{in: "API_v2", want: "api_v2"},
		{in: "ops/infra", wantErr: true},
		{in: "this_category_name_is_far_too_long_to_be_valid", wantErr: true},
		{in: "réunion", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, v1.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("")
	require.NoError(t, err)
	assert.Equal(t, VisibilityTeam, v)

	v, err = ParseVisibility(" Private ")
	require.NoError(t, err)
	assert.Equal(t, VisibilityPrivate, v)

	_, err = ParseVisibility("secret")
	assert.ErrorIs(t, err, v1.ErrValidation)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"api", "outage"}, normalizeTags([]string{" outage", "api", "", "outage"}))
	assert.Equal(t, []string{}, normalizeTags(nil))
}

func TestMemory_Clone(t *testing.T) {
	m := &Memory{ID: "m1", Tags: []string{"a"}, Verifiers: []string{"alice"}, RelatedIDs: []string{"m2"}, Embedding: []float32{1}}
	c := m.Clone()
	c.Tags[0] = "b"
	c.Verifiers[0] = "bob"
	c.RelatedIDs[0] = "m3"
	c.Embedding[0] = 2

	assert.Equal(t, "a", m.Tags[0])
	assert.Equal(t, "alice", m.Verifiers[0])
	assert.Equal(t, "m2", m.RelatedIDs[0])
	assert.Equal(t, float32(1), m.Embedding[0])
	assert.Nil(t, (*Memory)(nil).Clone())
}

func TestPayload_Decode(t *testing.T) {
	m := &Memory{
		ID:          "m1",
		Content:     "cache TTL is 5 minutes",
		OwnerID:     "alice",
		WorkspaceID: "ws1",
		Category:    "general",
		Tags:        []string{"cache"},
		Visibility:  VisibilityTeam,
		Confidence:  0.55,
		Verifiers:   []string{"alice", "bob"},
		RelatedIDs:  []string{},
		Version:     3,
	}
	p := m.Payload()
	assert.Equal(t, `["cache"]`, p[FieldTags])
	assert.Equal(t, "0.55", p[FieldConfidence])
	assert.Equal(t, "[]", p[FieldRelatedIDs])

	p[FieldConfidence] = "high"
	pt := toPoint(m)
	pt.Payload = p
	_, err := fromPoint(&pt)
	assert.Error(t, err)
}
