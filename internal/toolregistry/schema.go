package toolregistry

import (
	"bytes"
	"io"
)

// bytesReader wraps a raw JSON schema document for jsonschema.Compiler,
// which takes an io.Reader per resource.
func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
