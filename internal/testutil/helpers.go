// Package testutil provides test fixtures and mock implementations for the
// pdfconvertor core library.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// DocxSignature is the ZIP local file header that opens every .docx file.
var DocxSignature = []byte{0x50, 0x4B, 0x03, 0x04}

// DocSignature is the OLE2 compound document header that opens every
// legacy .doc file.
var DocSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// CreateDummyFile creates a file with the given content, ensuring parent
// directories exist.
func CreateDummyFile(t *testing.T, path string, content []byte) {
	t.Helper()
	fullPath := filepath.Clean(path)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755), "failed to create directory for %s", fullPath)
	require.NoError(t, os.WriteFile(fullPath, content, 0o644), "failed to write %s", fullPath)
}

// CreateDocxFile creates a file that passes .docx signature validation,
// padded to at least size bytes.
func CreateDocxFile(t *testing.T, path string, size int) {
	t.Helper()
	CreateDummyFile(t, path, signedContent(DocxSignature, size))
}

// CreateDocFile creates a file that passes legacy .doc signature validation,
// padded to at least size bytes.
func CreateDocFile(t *testing.T, path string, size int) {
	t.Helper()
	CreateDummyFile(t, path, signedContent(DocSignature, size))
}

// CreateDummyDir ensures a directory exists, creating parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Clean(path), 0o755), "failed to create directory %s", path)
}

func signedContent(signature []byte, size int) []byte {
	if size < len(signature) {
		size = len(signature)
	}
	content := make([]byte, size)
	copy(content, signature)
	copy(content[len(signature):], bytes.Repeat([]byte("content "), (size/8)+1))
	return content[:size]
}
