package loader

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// xlinkNS is the XLink namespace URI used to identify href/actuate
// attributes regardless of the prefix a given manifest declares for it.
const xlinkNS = "http://www.w3.org/1999/xlink"

// node is a generic, lossless XML element tree. Unlike unmarshaling
// straight into pkg/mpd's typed structs, a generic tree lets the XLink
// resolver splice arbitrary fragments into arbitrary places before the
// document is known to be a well-formed MPD.
type node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*node
	Text     string
}

// attr returns the value of the attribute named local in namespace ns, and
// whether it was present.
func (n *node) attr(ns, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local && (ns == "" || a.Name.Space == ns) {
			return a.Value, true
		}
	}
	return "", false
}

// deleteAttr removes the named attribute, if present.
func (n *node) deleteAttr(ns, local string) {
	out := n.Attrs[:0]
	for _, a := range n.Attrs {
		if a.Name.Local == local && (ns == "" || a.Name.Space == ns) {
			continue
		}
		out = append(out, a)
	}
	n.Attrs = out
}

// decodeXML parses data into a node tree rooted at the document element.
func decodeXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *node
	var stack []*node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

// encodeXML serializes a node tree back into XML bytes.
func encodeXML(n *node) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := writeNode(enc, n); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(enc *xml.Encoder, n *node) error {
	start := xml.StartElement{Name: n.Name, Attr: n.Attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if n.Text != "" {
		if err := enc.EncodeToken(xml.CharData(n.Text)); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := writeNode(enc, child); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: n.Name})
}
