package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func writeShader(t *testing.T, bytes []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shader.spv")
	err := os.WriteFile(path, bytes, 0o644)
	if err != nil {
		t.Fatalf("write shader file: %v", err)
	}

	return path
}

func TestLoadShaderWords(t *testing.T) {
	// SPIR-V magic followed by one more word, little-endian on disk.
	path := writeShader(t, []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})

	words, err := LoadShaderWords(path)
	if err != nil {
		t.Fatalf("LoadShaderWords: %+v", err)
	}

	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("first word %#x, want the SPIR-V magic 0x07230203", words[0])
	}
	if words[1] != 0x00010000 {
		t.Errorf("second word %#x, want 0x00010000", words[1])
	}
}

func TestLoadShaderWordsMissingFile(t *testing.T) {
	_, err := LoadShaderWords(filepath.Join(t.TempDir(), "missing.spv"))
	if !errors.Is(err, ErrShaderLoad) {
		t.Fatalf("got %v, want a shader load error", err)
	}
}

func TestLoadShaderWordsEmptyFile(t *testing.T) {
	path := writeShader(t, nil)

	_, err := LoadShaderWords(path)
	if !errors.Is(err, ErrShaderLoad) {
		t.Fatalf("got %v, want a shader load error", err)
	}
}

func TestLoadShaderWordsTruncatedFile(t *testing.T) {
	path := writeShader(t, []byte{0x03, 0x02, 0x23})

	_, err := LoadShaderWords(path)
	if !errors.Is(err, ErrShaderLoad) {
		t.Fatalf("got %v, want a shader load error", err)
	}
}
