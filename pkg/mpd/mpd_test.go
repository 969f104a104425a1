package mpd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParse_Basic(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT1M30S">
  <Period id="p0">
    <AdaptationSet mimeType="video/mp4" lang="en">
      <Representation id="v0" bandwidth="500000" width="640" height="360"/>
    </AdaptationSet>
  </Period>
</MPD>`)

	m, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, m.Period, 1)
	require.Len(t, m.Period[0].AdaptationSet, 1)
	as := m.Period[0].AdaptationSet[0]
	require.Len(t, as.Representation, 1)
	assert.Equal(t, "v0", as.Representation[0].ID)
	assert.Equal(t, uint64(500000), *as.Representation[0].Bandwidth)
}

func TestParse_WrongRoot(t *testing.T) {
	_, err := Parse([]byte(`<NotAnMPD/>`))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT1M30S", 90 * time.Second},
		{"PT0S", 0},
		{"PT1H", time.Hour},
		{"P1DT1H", 25 * time.Hour},
		{"PT0.5S", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	_, err := ParseDuration("")
	assert.Error(t, err)
	_, err = ParseDuration("1M30S")
	assert.Error(t, err)
}

func TestAdaptationSet_ContentKind(t *testing.T) {
	video := &AdaptationSet{MimeType: ptr("video/mp4")}
	assert.Equal(t, KindVideo, video.ContentKind())

	audio := &AdaptationSet{ContentType: ptr("audio")}
	assert.Equal(t, KindAudio, audio.ContentKind())

	sub := &AdaptationSet{MimeType: ptr("text/vtt")}
	assert.Equal(t, KindSubtitle, sub.ContentKind())

	fromRep := &AdaptationSet{Representation: []*Representation{{MimeType: ptr("video/mp4")}}}
	assert.Equal(t, KindVideo, fromRep.ContentKind())
}

func TestAdaptationSet_LangDistance(t *testing.T) {
	as := &AdaptationSet{Lang: ptr("en-US")}
	assert.Equal(t, 0, as.LangDistance("en-US"))
	assert.Equal(t, 5, as.LangDistance("en"))
	assert.Equal(t, 100, as.LangDistance("fr"))

	noLang := &AdaptationSet{}
	assert.Equal(t, 100, noLang.LangDistance("en"))
	assert.Equal(t, 0, noLang.LangDistance(""))
}

func TestAdaptationSet_RoleDistance(t *testing.T) {
	as := &AdaptationSet{Role: []Descriptor{{Value: ptr("alternate")}}}
	prefs := []string{"main", "alternate", "commentary"}
	assert.Equal(t, 1, as.RoleDistance(prefs))

	none := &AdaptationSet{}
	assert.Equal(t, RoleNotFoundDistance, none.RoleDistance(prefs))
}

func TestAdaptationSet_RoleInheritedFromContentComponent(t *testing.T) {
	as := &AdaptationSet{
		ContentComponent: []ContentComponent{
			{Role: []Descriptor{{Value: ptr("main")}}},
		},
	}
	assert.True(t, as.HasRole("main"))
	assert.False(t, as.HasRole("dub"))
}

func TestCheckConformity_FlagsMissingAddressing(t *testing.T) {
	m := &MPD{
		Period: []*Period{
			{
				ID: ptr("p0"),
				AdaptationSet: []*AdaptationSet{
					{
						ID:             ptr("as0"),
						Representation: []*Representation{{ID: "r0"}},
					},
				},
			},
		},
	}
	issues := m.CheckConformity()
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "no addressing mode")
}

func TestCheckConformity_FlagsZeroTimescale(t *testing.T) {
	m := &MPD{
		Period: []*Period{
			{
				AdaptationSet: []*AdaptationSet{
					{
						SegmentTemplate: &SegmentTemplate{Timescale: ptr(uint64(0))},
						Representation:  []*Representation{{ID: "r0"}},
					},
				},
			},
		},
	}
	issues := m.CheckConformity()
	found := false
	for _, i := range issues {
		if i.Message == "SegmentTemplate has timescale=0" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckConformity_FlagsInconsistentMimeType(t *testing.T) {
	m := &MPD{
		Period: []*Period{
			{
				AdaptationSet: []*AdaptationSet{
					{
						Representation: []*Representation{
							{ID: "r0", MimeType: ptr("video/mp4"), SegmentBase: &SegmentBase{}},
							{ID: "r1", MimeType: ptr("video/webm"), SegmentBase: &SegmentBase{}},
						},
					},
				},
			},
		},
	}
	issues := m.CheckConformity()
	found := false
	for _, i := range issues {
		if i.Message == "inconsistent mimeType across Representations in one AdaptationSet" {
			found = true
		}
	}
	assert.True(t, found)
}
