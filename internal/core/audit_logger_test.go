package core

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditLogger_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	stdLogger := log.New(os.Stderr, "", log.LstdFlags)
	audit := NewAuditLogger(dir, 100, stdLogger)

	payload := []byte(`{"first_name":"Pat","email":"pat@example.com"}`)
	if err := audit.Log("signup", 1, "203.0.113.9:51234", payload); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := audit.Log("contact", 0, "203.0.113.9:51235", []byte(`{"message":"hi"}`)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "audit_*.jsonl"))
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected one audit file, got %v (%v)", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("Failed to open audit file: %v", err)
	}
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Bad audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["form_type"] != "signup" || entries[0]["remote_addr"] != "203.0.113.9:51234" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}

	raw, _ := json.Marshal(entries[0]["raw_json"])
	if !strings.Contains(string(raw), "pat@example.com") {
		t.Errorf("Raw payload not preserved: %s", raw)
	}
}

func TestAuditLogger_GetStats(t *testing.T) {
	dir := t.TempDir()
	stdLogger := log.New(os.Stderr, "", log.LstdFlags)
	audit := NewAuditLogger(dir, 100, stdLogger)

	if err := audit.Log("signup", 1, "127.0.0.1:1", []byte(`{}`)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	stats := audit.GetStats()
	if stats["current_file"] == "" {
		t.Error("Expected current file in stats")
	}
	if stats["max_size_mb"].(int64) != 100 {
		t.Errorf("Unexpected max size: %v", stats["max_size_mb"])
	}
}
