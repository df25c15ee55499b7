package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	versionSentinel = "<!-- statebridge-snapshot-version: 1 -->"
	dataPrefix      = "<!-- statebridge-data: "
	dataSuffix      = " -->"
)

// Parser deserializes a snapshot file.
type Parser interface {
	Parse(data []byte) (*Snapshot, error)
}

// JSONParser parses a JSON-encoded Snapshot.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON snapshot: %w", err)
	}
	return &s, nil
}

// MarkdownParser extracts the embedded payload written by MarkdownRenderer.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Snapshot, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a valid snapshot file: missing version sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid snapshot file: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid snapshot file: malformed data payload")
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid snapshot file: corrupted base64 payload: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(jsonBytes, &s); err != nil {
		return nil, fmt.Errorf("not a valid snapshot file: failed to parse embedded JSON: %w", err)
	}
	return &s, nil
}

// ParserFor picks a parser from the file extension.
func ParserFor(path string) Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return &JSONParser{}
	}
	return &MarkdownParser{}
}
