package planner

import (
	"encoding/binary"
	"fmt"
)

// sidxReference is one segment-index reference entry: the size in bytes
// of the segment it describes. Duration and SAP fields exist in the box
// but aren't needed to build byte-range descriptors.
type sidxReference struct {
	ReferencedSize uint32
}

// sidxBox is the parsed subset of ISO/IEC 14496-12's 'sidx' box this
// planner needs: just enough to turn it into a list of byte ranges.
// A full MP4 demuxer is not warranted for one box type (see DESIGN.md).
type sidxBox struct {
	References []sidxReference
}

// parseSidx scans data (the byte range declared by SegmentBase's
// @indexRange, which also contains any leading ftyp/moov boxes) for a
// top-level 'sidx' box and parses its segment references.
func parseSidx(data []byte) (*sidxBox, error) {
	offset := 0
	for offset+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		boxType := string(data[offset+4 : offset+8])
		headerLen := 8

		if boxSize == 1 {
			if offset+16 > len(data) {
				return nil, fmt.Errorf("truncated largesize box header")
			}
			boxSize = int(binary.BigEndian.Uint64(data[offset+8 : offset+16]))
			headerLen = 16
		}
		if boxSize <= 0 || offset+boxSize > len(data) {
			return nil, fmt.Errorf("box %q size %d exceeds available data", boxType, boxSize)
		}

		if boxType == "sidx" {
			return parseSidxPayload(data[offset+headerLen : offset+boxSize])
		}
		offset += boxSize
	}
	return nil, fmt.Errorf("no sidx box found in indexRange body")
}

func parseSidxPayload(p []byte) (*sidxBox, error) {
	if len(p) < 12 {
		return nil, fmt.Errorf("sidx payload too short")
	}
	version := p[0]
	pos := 4 // version(1) + flags(3)
	pos += 4 // reference_ID
	pos += 4 // timescale

	if version == 0 {
		pos += 8 // earliest_presentation_time(4) + first_offset(4)
	} else {
		pos += 16 // earliest_presentation_time(8) + first_offset(8)
	}
	pos += 2 // reserved

	if pos+2 > len(p) {
		return nil, fmt.Errorf("sidx payload truncated before reference_count")
	}
	refCount := binary.BigEndian.Uint16(p[pos : pos+2])
	pos += 2

	box := &sidxBox{References: make([]sidxReference, 0, refCount)}
	for i := uint16(0); i < refCount; i++ {
		if pos+12 > len(p) {
			return nil, fmt.Errorf("sidx payload truncated at reference %d", i)
		}
		refSizeAndType := binary.BigEndian.Uint32(p[pos : pos+4])
		referencedSize := refSizeAndType & 0x7FFFFFFF
		box.References = append(box.References, sidxReference{ReferencedSize: referencedSize})
		pos += 12 // referenced_size(4) + subsegment_duration(4) + SAP fields(4)
	}
	return box, nil
}
