package clip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bdougie/metafootage/internal/models"
)

func TestMemorySetAndGet(t *testing.T) {
	c := NewMemory("shot01", "/footage/shot01.mov")
	if err := c.SetMetadata(map[string]string{
		models.FieldKeywords: "beach, sunset",
	}); err != nil {
		t.Fatal(err)
	}
	if got := c.Metadata(models.FieldKeywords); got != "beach, sunset" {
		t.Errorf("keywords = %q", got)
	}
	if got := c.Metadata(models.FieldComments); got != "" {
		t.Errorf("unset field = %q, want empty", got)
	}
}

func TestFileName(t *testing.T) {
	c := NewFile("/footage/day1/shot01.braw")
	if got := c.Name(); got != "shot01" {
		t.Errorf("name = %q, want shot01", got)
	}
}

func TestFileSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "shot01.mov")
	if err := os.WriteFile(media, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewFile(media)
	if err := c.SetMetadata(map[string]string{
		models.FieldDescription: "a wide shot of a beach",
		models.FieldKeywords:    "beach",
	}); err != nil {
		t.Fatal(err)
	}

	// A fresh ref must see what the first one wrote.
	reloaded := NewFile(media)
	if got := reloaded.Metadata(models.FieldDescription); got != "a wide shot of a beach" {
		t.Errorf("description = %q", got)
	}
	if got := reloaded.Metadata(models.FieldKeywords); got != "beach" {
		t.Errorf("keywords = %q", got)
	}

	if _, err := os.Stat(media + ".metadata.json"); err != nil {
		t.Errorf("sidecar missing: %v", err)
	}
}

func TestFileSetMergesExistingSidecar(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "shot02.mov")
	sidecar := media + ".metadata.json"
	if err := os.WriteFile(sidecar, []byte(`{"Comments":"operator note"}`), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewFile(media)
	if err := c.SetMetadata(map[string]string{models.FieldKeywords: "night"}); err != nil {
		t.Fatal(err)
	}
	if got := c.Metadata(models.FieldComments); got != "operator note" {
		t.Errorf("existing comment lost: %q", got)
	}
	if got := c.Metadata(models.FieldKeywords); got != "night" {
		t.Errorf("keywords = %q", got)
	}
}

func TestFileCorruptSidecarStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "shot03.mov")
	if err := os.WriteFile(media+".metadata.json", []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewFile(media)
	if got := c.Metadata(models.FieldKeywords); got != "" {
		t.Errorf("corrupt sidecar should read empty, got %q", got)
	}
	if err := c.SetMetadata(map[string]string{models.FieldKeywords: "recovered"}); err != nil {
		t.Fatal(err)
	}
	if got := NewFile(media).Metadata(models.FieldKeywords); got != "recovered" {
		t.Errorf("after rewrite = %q", got)
	}
}
