package planner

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSidxBox(references []uint32) []byte {
	payload := make([]byte, 0, 20+12*len(references))
	payload = append(payload, 0, 0, 0, 0)       // version(1)+flags(3)
	payload = append(payload, 0, 0, 0, 1)       // reference_ID
	payload = append(payload, 0, 0, 0x03, 0xe8) // timescale = 1000
	payload = append(payload, 0, 0, 0, 0)       // earliest_presentation_time
	payload = append(payload, 0, 0, 0, 0)       // first_offset
	payload = append(payload, 0, 0)             // reserved

	refCount := make([]byte, 2)
	binary.BigEndian.PutUint16(refCount, uint16(len(references)))
	payload = append(payload, refCount...)

	for _, size := range references {
		entry := make([]byte, 12)
		binary.BigEndian.PutUint32(entry[0:4], size&0x7FFFFFFF)
		payload = append(payload, entry...)
	}

	box := make([]byte, 8)
	binary.BigEndian.PutUint32(box[0:4], uint32(8+len(payload)))
	copy(box[4:8], "sidx")
	return append(box, payload...)
}

func TestParseSidx_Basic(t *testing.T) {
	ftyp := make([]byte, 8)
	binary.BigEndian.PutUint32(ftyp[0:4], 8)
	copy(ftyp[4:8], "ftyp")

	sidx := buildSidxBox([]uint32{1000, 2000, 1500})

	data := append(append([]byte{}, ftyp...), sidx...)

	box, err := parseSidx(data)
	require.NoError(t, err)
	require.Len(t, box.References, 3)
	assert.Equal(t, uint32(1000), box.References[0].ReferencedSize)
	assert.Equal(t, uint32(2000), box.References[1].ReferencedSize)
	assert.Equal(t, uint32(1500), box.References[2].ReferencedSize)
}

func TestParseSidx_NotFound(t *testing.T) {
	ftyp := make([]byte, 8)
	binary.BigEndian.PutUint32(ftyp[0:4], 8)
	copy(ftyp[4:8], "ftyp")

	_, err := parseSidx(ftyp)
	assert.Error(t, err)
}
