package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Entry is one downloadable file discovered in a manifest. Size and SHA1 are
// optional; verification is skipped for whichever is absent.
type Entry struct {
	Filename string
	URL      string
	Size     int64
	SHA1     string
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// LoadManifest reads the JSON file at path and returns every entry whose
// filename ends with suffix (case-insensitive). An empty suffix matches
// everything.
func LoadManifest(path, suffix string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var entries []Entry
	collectEntries(doc, &entries)

	if suffix == "" {
		return entries, nil
	}
	lowered := strings.ToLower(suffix)
	filtered := entries[:0]
	for _, entry := range entries {
		if strings.HasSuffix(strings.ToLower(entry.Filename), lowered) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// collectEntries walks arbitrarily nested JSON looking for objects carrying
// both a filename and a download URL. No key paths are hardcoded, so
// manifests can nest entries under any structure.
func collectEntries(node any, out *[]Entry) {
	switch v := node.(type) {
	case map[string]any:
		if entry, ok := entryFromObject(v); ok {
			*out = append(*out, entry)
		}
		for _, child := range v {
			collectEntries(child, out)
		}
	case []any:
		for _, child := range v {
			collectEntries(child, out)
		}
	}
}

func entryFromObject(obj map[string]any) (Entry, bool) {
	name, _ := obj["filename"].(string)
	url, _ := obj["download_url"].(string)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
		return Entry{}, false
	}
	entry := Entry{
		Filename: sanitizeFilename(name),
		URL:      url,
	}
	if size, ok := obj["file_size_bytes"].(float64); ok && size == float64(int64(size)) {
		entry.Size = int64(size)
	}
	if sha, ok := obj["sha1sum"].(string); ok {
		entry.SHA1 = strings.ToLower(strings.TrimSpace(sha))
	}
	return entry, true
}

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
