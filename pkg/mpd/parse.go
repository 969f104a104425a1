package mpd

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Parse decodes a manifest document into an MPD tree. It rejects documents
// whose root element is not named MPD, which otherwise decodes silently
// into a zero-value tree and produces confusing downstream errors.
func Parse(data []byte) (*MPD, error) {
	var probe xml.Name
	if err := (&probeDecoder{&probe}).decode(data); err != nil {
		return nil, fmt.Errorf("probing root element: %w", err)
	}
	if probe.Local != "MPD" {
		return nil, fmt.Errorf("unexpected root element %q, want MPD", probe.Local)
	}

	var m MPD
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding MPD: %w", err)
	}
	return &m, nil
}

type probeDecoder struct {
	name *xml.Name
}

func (p *probeDecoder) decode(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok {
			*p.name = start.Name
			return nil
		}
	}
}
