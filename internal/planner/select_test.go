package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamweave/dashdl/pkg/mpd"
)

func ptr[T any](v T) *T { return &v }

func TestSelect_LanguageThenRole(t *testing.T) {
	period := &mpd.Period{
		AdaptationSet: []*mpd.AdaptationSet{
			{
				Lang:     ptr("fr"),
				MimeType: ptr("audio/mp4"),
				Role:     []mpd.Descriptor{{Value: ptr("main")}},
				Representation: []*mpd.Representation{
					{ID: "fr-main", Bandwidth: ptr(uint64(128000))},
				},
			},
			{
				Lang:     ptr("en"),
				MimeType: ptr("audio/mp4"),
				Role:     []mpd.Descriptor{{Value: ptr("commentary")}},
				Representation: []*mpd.Representation{
					{ID: "en-commentary", Bandwidth: ptr(uint64(96000))},
				},
			},
			{
				Lang:     ptr("en"),
				MimeType: ptr("audio/mp4"),
				Role:     []mpd.Descriptor{{Value: ptr("main")}},
				Representation: []*mpd.Representation{
					{ID: "en-main", Bandwidth: ptr(uint64(128000))},
				},
			},
		},
	}

	as, rep := Select(period, KindAudio, Preferences{Lang: "en", Roles: []string{"main", "commentary"}})
	require.NotNil(t, rep)
	assert.Equal(t, "en-main", rep.ID)
	assert.Equal(t, "en", *as.Lang)
}

func TestSelect_BandwidthTiers(t *testing.T) {
	period := &mpd.Period{
		AdaptationSet: []*mpd.AdaptationSet{
			{
				MimeType: ptr("video/mp4"),
				Representation: []*mpd.Representation{
					{ID: "low", Bandwidth: ptr(uint64(500000))},
					{ID: "mid", Bandwidth: ptr(uint64(1500000))},
					{ID: "high", Bandwidth: ptr(uint64(3000000))},
				},
			},
		},
	}

	_, low := Select(period, KindVideo, Preferences{Quality: TierLowest})
	require.NotNil(t, low)
	assert.Equal(t, "low", low.ID)

	_, mid := Select(period, KindVideo, Preferences{Quality: TierIntermediate})
	require.NotNil(t, mid)
	assert.Equal(t, "mid", mid.ID)

	_, high := Select(period, KindVideo, Preferences{Quality: TierHighest})
	require.NotNil(t, high)
	assert.Equal(t, "high", high.ID)
}

func TestSelect_PreferredDimension(t *testing.T) {
	period := &mpd.Period{
		AdaptationSet: []*mpd.AdaptationSet{
			{
				MimeType: ptr("video/mp4"),
				Representation: []*mpd.Representation{
					{ID: "480p", Width: ptr(uint64(854)), Height: ptr(uint64(480))},
					{ID: "720p", Width: ptr(uint64(1280)), Height: ptr(uint64(720))},
					{ID: "1080p", Width: ptr(uint64(1920)), Height: ptr(uint64(1080))},
				},
			},
		},
	}

	_, rep := Select(period, KindVideo, Preferences{PreferredHeight: ptr(uint64(700))})
	require.NotNil(t, rep)
	assert.Equal(t, "720p", rep.ID)
}

func TestSelect_SubtitleByCodec(t *testing.T) {
	period := &mpd.Period{
		AdaptationSet: []*mpd.AdaptationSet{
			{
				MimeType: ptr("application/mp4"),
				Representation: []*mpd.Representation{
					{ID: "subs", Codecs: ptr("stpp.ttml.im1t")},
				},
			},
		},
	}
	as, rep := Select(period, KindSubtitle, Preferences{})
	require.NotNil(t, rep)
	assert.Equal(t, "subs", rep.ID)
	assert.NotNil(t, as)
}

func TestSelect_NoCandidates(t *testing.T) {
	period := &mpd.Period{}
	as, rep := Select(period, KindVideo, Preferences{})
	assert.Nil(t, as)
	assert.Nil(t, rep)
}
