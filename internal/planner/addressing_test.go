package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamweave/dashdl/pkg/mpd"
)

func TestSubstitute_TimeAndNumber(t *testing.T) {
	time := uint64(999)
	number := uint64(42)
	got := substitute("chunk-$RepresentationID$-$Time$-$Number%06d$.m4s", "v0", 0, &time, &number)
	assert.Equal(t, "chunk-v0-999-000042.m4s", got)
}

func TestSubstitute_LiteralDollar(t *testing.T) {
	got := substitute("AA$$BB", "v0", 0, nil, nil)
	assert.Equal(t, "AA$BB", got)
}

func TestSubstitute_TimeToken(t *testing.T) {
	tm := uint64(12345)
	got := substitute("AA$Time$BB", "v0", 0, &tm, nil)
	assert.Equal(t, "AA12345BB", got)
}

func TestParseRange_Valid(t *testing.T) {
	a, b, err := parseRange("0-999")
	require.NoError(t, err)
	assert.Equal(t, int64(0), a)
	assert.Equal(t, int64(999), b)
}

func TestParseRange_Invalid(t *testing.T) {
	_, _, err := parseRange("not-a-range")
	assert.Error(t, err)
	_, _, err = parseRange("-5-10")
	assert.Error(t, err)
}

func TestExpand_SegmentList(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{
		SegmentList: &mpd.SegmentList{
			Initialization: &mpd.Initialization{SourceURL: ptr("init.mp4")},
			SegmentURL: []mpd.SegmentURL{
				{Media: ptr("seg1.m4s")},
				{Media: ptr("seg2.m4s")},
			},
		},
	}
	rep := &mpd.Representation{ID: "v0"}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/video/", AddressingOptions{PeriodIndex: 0})
	require.NoError(t, err)
	require.Len(t, descs, 3)
	assert.True(t, descs[0].IsInitialization)
	assert.Equal(t, "http://cdn.example.com/video/init.mp4", descs[0].URL)
	assert.Equal(t, "http://cdn.example.com/video/seg1.m4s", descs[1].URL)
	assert.Equal(t, "http://cdn.example.com/video/seg2.m4s", descs[2].URL)
}

func TestExpand_SegmentTemplateTimeline(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{
		ID: "v0",
		SegmentTemplate: &mpd.SegmentTemplate{
			Initialization: ptr("init-$RepresentationID$.mp4"),
			Media:          ptr("seg-$RepresentationID$-$Number$.m4s"),
			Timescale:      ptr(uint64(1000)),
			StartNumber:    ptr(uint64(1)),
			SegmentTimeline: &mpd.SegmentTimeline{
				S: []mpd.S{
					{T: ptr(uint64(0)), D: 2000, R: ptr(int64(2))},
				},
			},
		},
	}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/", AddressingOptions{PeriodIndex: 0})
	require.NoError(t, err)
	require.Len(t, descs, 4) // init + 3 segments (r=2 means 3 total)
	assert.True(t, descs[0].IsInitialization)
	assert.Equal(t, "http://cdn.example.com/init-v0.mp4", descs[0].URL)
	assert.Equal(t, "http://cdn.example.com/seg-v0-1.m4s", descs[1].URL)
	assert.Equal(t, "http://cdn.example.com/seg-v0-2.m4s", descs[2].URL)
	assert.Equal(t, "http://cdn.example.com/seg-v0-3.m4s", descs[3].URL)
}

func TestExpand_SegmentTemplateSimple(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{
		ID: "v0",
		SegmentTemplate: &mpd.SegmentTemplate{
			Media:       ptr("seg-$Number$.m4s"),
			Timescale:   ptr(uint64(1000)),
			Duration:    ptr(uint64(2000)),
			StartNumber: ptr(uint64(1)),
		},
	}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/", AddressingOptions{PeriodIndex: 0, PeriodDurationSec: 10})
	require.NoError(t, err)
	require.Len(t, descs, 5)
	assert.Equal(t, "http://cdn.example.com/seg-1.m4s", descs[0].URL)
	assert.Equal(t, "http://cdn.example.com/seg-5.m4s", descs[4].URL)
}

func TestExpand_PlainBaseURL(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{ID: "v0", BaseURL: []mpd.BaseURL{{Value: "video.mp4"}}}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/stream/", AddressingOptions{PeriodIndex: 0})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "http://cdn.example.com/stream/video.mp4", descs[0].URL)
}

func TestExpand_NoAddressingMode(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{ID: "v0"}

	_, err := Expand(context.Background(), period, as, rep, "", AddressingOptions{PeriodIndex: 0})
	assert.ErrorIs(t, err, ErrNoAddressingMode)
}

// fakeRangeFetcher serves a fixed byte slice for any Range request,
// simulating the SegmentBase@indexRange body containing a single sidx box.
type fakeRangeFetcher struct {
	data        []byte
	contentType string
}

func (f *fakeRangeFetcher) FetchRange(_ context.Context, _ string, _, _ int64) ([]byte, string, bool, error) {
	return f.data, f.contentType, true, nil
}

// buildIndexRangeSidxBox constructs a minimal version-0 'sidx' box with one
// reference per entry in sizes.
func buildIndexRangeSidxBox(sizes []uint32) []byte {
	payload := make([]byte, 0, 20+12*len(sizes))
	payload = append(payload, 0, 0, 0, 0)       // version(1) + flags(3)
	payload = append(payload, 0, 0, 0, 1)       // reference_ID
	payload = append(payload, 0, 0, 0x03, 0xe8) // timescale = 1000
	payload = append(payload, 0, 0, 0, 0)       // earliest_presentation_time
	payload = append(payload, 0, 0, 0, 0)       // first_offset
	payload = append(payload, 0, 0)             // reserved
	refCount := uint16(len(sizes))
	payload = append(payload, byte(refCount>>8), byte(refCount))
	for _, size := range sizes {
		payload = append(payload,
			byte(size>>24), byte(size>>16), byte(size>>8), byte(size), // referenced_size
			0, 0, 0, 0, // subsegment_duration
			0, 0, 0, 0, // SAP fields
		)
	}

	boxSize := 8 + len(payload)
	box := make([]byte, 0, boxSize)
	box = append(box, byte(boxSize>>24), byte(boxSize>>16), byte(boxSize>>8), byte(boxSize))
	box = append(box, 's', 'i', 'd', 'x')
	box = append(box, payload...)
	return box
}

func TestExpand_SegmentBaseIndexRange(t *testing.T) {
	sidx := buildIndexRangeSidxBox([]uint32{100, 200})
	indexRange := fmt.Sprintf("0-%d", len(sidx)-1)

	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{
		ID: "v0",
		SegmentBase: &mpd.SegmentBase{
			IndexRange: ptr(indexRange),
		},
		BaseURL: []mpd.BaseURL{{Value: "video.mp4"}},
	}

	fetcher := &fakeRangeFetcher{data: sidx, contentType: "video/mp4"}
	opts := AddressingOptions{
		PeriodIndex:     0,
		AllowIndexRange: true,
		RangeFetcher:    fetcher,
	}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/stream/", opts)
	require.NoError(t, err)
	require.Len(t, descs, 3) // index box + 2 sidx references

	indexEnd := int64(len(sidx) - 1)
	assert.True(t, descs[0].IsInitialization)
	assert.Equal(t, int64(0), *descs[0].RangeStart)
	assert.Equal(t, indexEnd, *descs[0].RangeEnd)

	assert.False(t, descs[1].IsInitialization)
	assert.Equal(t, indexEnd+1, *descs[1].RangeStart)
	assert.Equal(t, indexEnd+100, *descs[1].RangeEnd)

	assert.Equal(t, indexEnd+101, *descs[2].RangeStart)
	assert.Equal(t, indexEnd+300, *descs[2].RangeEnd)

	for _, d := range descs {
		assert.Equal(t, "http://cdn.example.com/stream/video.mp4", d.URL)
	}
}

func TestExpand_SegmentBaseIndexRange_SeparateInitialization(t *testing.T) {
	sidx := buildIndexRangeSidxBox([]uint32{100, 200})
	indexRange := fmt.Sprintf("835-%d", 835+len(sidx)-1)

	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{
		ID: "v0",
		SegmentBase: &mpd.SegmentBase{
			IndexRange:     ptr(indexRange),
			Initialization: &mpd.Initialization{Range: ptr("0-834")},
		},
		BaseURL: []mpd.BaseURL{{Value: "video.mp4"}},
	}

	fetcher := &fakeRangeFetcher{data: sidx, contentType: "video/mp4"}
	opts := AddressingOptions{
		PeriodIndex:     0,
		AllowIndexRange: true,
		RangeFetcher:    fetcher,
	}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/stream/", opts)
	require.NoError(t, err)
	require.Len(t, descs, 3) // init segment + 2 sidx references, no duplicate/sidx-as-init descriptor

	assert.True(t, descs[0].IsInitialization)
	assert.Equal(t, int64(0), *descs[0].RangeStart)
	assert.Equal(t, int64(834), *descs[0].RangeEnd)

	assert.False(t, descs[1].IsInitialization)
	assert.False(t, descs[2].IsInitialization)
}

// TestExpand_SegmentBaseIndexRange_FallsBackOnError verifies that a
// RangeFetcher error falls through to mode 6 (plain BaseURL) rather than
// surfacing the range-fetch failure directly.
func TestExpand_SegmentBaseIndexRange_FallsBackOnError(t *testing.T) {
	period := &mpd.Period{}
	as := &mpd.AdaptationSet{}
	rep := &mpd.Representation{
		ID:          "v0",
		SegmentBase: &mpd.SegmentBase{IndexRange: ptr("0-9")},
		BaseURL:     []mpd.BaseURL{{Value: "video.mp4"}},
	}

	fetcher := &fakeRangeFetcher{data: []byte("not a sidx box at all"), contentType: "video/mp4"}
	opts := AddressingOptions{
		PeriodIndex:     0,
		AllowIndexRange: true,
		RangeFetcher:    fetcher,
	}

	descs, err := Expand(context.Background(), period, as, rep, "http://cdn.example.com/stream/", opts)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "http://cdn.example.com/stream/video.mp4", descs[0].URL)
}
