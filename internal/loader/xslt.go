package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// maxCapturedStderr bounds how much of a failed xsltproc invocation's
// stderr is retained for the error message, matching the helper-output
// truncation contract used elsewhere for external subprocesses.
const maxCapturedStderr = 4096

// applyStylesheets runs each stylesheet over tree in registration order,
// feeding stylesheet n's output as stylesheet n+1's input, via an external
// xsltproc subprocess. XSLT 1.0 transformation is treated as a black box;
// this package only owns the temp-file plumbing around it.
func applyStylesheets(ctx context.Context, xsltprocPath string, tree *node, stylesheets []string) (*node, error) {
	current, err := encodeXML(tree)
	if err != nil {
		return nil, fmt.Errorf("encoding document for XSLT stage: %w", err)
	}

	for _, stylesheet := range stylesheets {
		current, err = runXSLT(ctx, xsltprocPath, stylesheet, current)
		if err != nil {
			return nil, fmt.Errorf("applying stylesheet %q: %w", stylesheet, err)
		}
	}

	return decodeXML(current)
}

// runXSLT invokes xsltprocPath against one stylesheet, writing input to a
// temp file (xsltproc wants a path, not stdin, for its second argument)
// and capturing stdout as the transformed document.
func runXSLT(ctx context.Context, xsltprocPath, stylesheet string, input []byte) ([]byte, error) {
	inputFile, err := os.CreateTemp("", "dashdl-xslt-in-*.xml")
	if err != nil {
		return nil, fmt.Errorf("creating temp input file: %w", err)
	}
	defer os.Remove(inputFile.Name())

	if _, err := inputFile.Write(input); err != nil {
		inputFile.Close()
		return nil, fmt.Errorf("writing temp input file: %w", err)
	}
	if err := inputFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temp input file: %w", err)
	}
	if err := os.Chmod(inputFile.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("chmod temp input file: %w", err)
	}

	if xsltprocPath == "" {
		xsltprocPath = "xsltproc"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, xsltprocPath, filepath.Clean(stylesheet), inputFile.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		captured := stderr.Bytes()
		if len(captured) > maxCapturedStderr {
			captured = captured[:maxCapturedStderr]
		}
		return nil, fmt.Errorf("xsltproc failed: %w: %s", err, captured)
	}

	return stdout.Bytes(), nil
}
