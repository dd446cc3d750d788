package core

import (
	"strings"
	"testing"
)

func TestGetDataDirectory(t *testing.T) {
	dir := GetDataDirectory()

	// Should return a non-empty string
	if dir == "" {
		t.Error("Expected non-empty data directory")
	}

	// Should contain "cleaner-marketing-forms" in the path unless we fell all
	// the way back to a relative dir
	if !strings.Contains(dir, "cleaner-marketing-forms") && !strings.HasPrefix(dir, ".") {
		t.Errorf("Expected data directory to contain 'cleaner-marketing-forms', got '%s'", dir)
	}
}
