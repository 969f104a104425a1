package loader

import (
	"context"
	"fmt"
	"log/slog"
)

// resolveToZero is the sentinel href that means "delete this element",
// per the DASH-IF XLink convention.
const resolveToZero = "urn:mpeg:dash:resolve-to-zero:2013"

// syntheticRootOpen wraps a fetched XLink fragment so it parses as a
// single well-formed document, redeclaring every namespace a fragment
// might reasonably depend on even though it was extracted out of context.
const syntheticRootOpen = `<synthetic-root ` +
	`xmlns="urn:mpeg:dash:schema:mpd:2011" ` +
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
	`xmlns:cenc="urn:mpeg:cenc:2013" ` +
	`xmlns:mspr="urn:microsoft:playready" ` +
	`xmlns:xlink="http://www.w3.org/1999/xlink">`
const syntheticRootClose = `</synthetic-root>`

// fetchFunc retrieves the bytes at href, resolved against base.
type fetchFunc func(ctx context.Context, href, base string) ([]byte, error)

// xlinkResolver walks a node tree and replaces every xlink:href-bearing
// element with the element(s) its target resolves to, bounded to maxIter
// passes as a DoS guard against cyclic or deeply chained references.
type xlinkResolver struct {
	fetch   fetchFunc
	logger  *slog.Logger
	maxIter int
}

func (r *xlinkResolver) resolve(ctx context.Context, root *node, baseURL string) error {
	for i := 0; i < r.maxIter; i++ {
		changed, err := r.resolveChildren(ctx, root, baseURL)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// resolveChildren performs one pass over parent's children, splicing in
// any XLink targets found, and recurses into children that were not
// themselves XLink elements.
func (r *xlinkResolver) resolveChildren(ctx context.Context, parent *node, baseURL string) (bool, error) {
	changed := false
	var out []*node

	for _, child := range parent.Children {
		href, ok := child.attr(xlinkNS, "href")
		if !ok {
			sub, err := r.resolveChildren(ctx, child, baseURL)
			if err != nil {
				return changed, err
			}
			changed = changed || sub
			out = append(out, child)
			continue
		}

		changed = true
		if href == resolveToZero {
			r.logger.Debug("XLink resolve-to-zero, removing element", slog.String("element", child.Name.Local))
			continue
		}

		fragment, err := r.fetchFragment(ctx, href, baseURL)
		if err != nil {
			return changed, fmt.Errorf("resolving xlink:href %q on <%s>: %w", href, child.Name.Local, err)
		}
		out = append(out, fragment.Children...)
	}

	parent.Children = out
	return changed, nil
}

// fetchFragment retrieves href and parses it as a synthetic-root-wrapped
// document, returning the synthetic root whose children are the actual
// spliced-in elements.
func (r *xlinkResolver) fetchFragment(ctx context.Context, href, baseURL string) (*node, error) {
	body, err := r.fetch(ctx, href, baseURL)
	if err != nil {
		return nil, err
	}

	wrapped := make([]byte, 0, len(syntheticRootOpen)+len(body)+len(syntheticRootClose))
	wrapped = append(wrapped, syntheticRootOpen...)
	wrapped = append(wrapped, body...)
	wrapped = append(wrapped, syntheticRootClose...)

	return decodeXML(wrapped)
}
