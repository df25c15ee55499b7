package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Renderer serializes a Snapshot to bytes.
type Renderer interface {
	Render(s *Snapshot) ([]byte, error)
	Ext() string
}

// JSONRenderer renders a Snapshot as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func (r *JSONRenderer) Ext() string { return ".json" }

// MarkdownRenderer renders a Snapshot as Markdown with an embedded base64
// JSON payload so the file can be parsed back losslessly.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Ext() string { return ".md" }

func (r *MarkdownRenderer) Render(s *Snapshot) ([]byte, error) {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# State snapshot — %s\n\n", s.Time().UTC().Format("2006-01-02 15:04:05 MST"))

	names := s.Names()
	sb.WriteString("## Summary\n\n")
	failed := 0
	for _, n := range names {
		if s.Failed(n) {
			failed++
		}
	}
	fmt.Fprintf(&sb, "- Collectors: %d\n", len(names))
	fmt.Fprintf(&sb, "- Failed or skipped: %d\n\n", failed)

	if len(names) == 0 {
		sb.WriteString("_No collectors ran._\n")
		return []byte(sb.String()), nil
	}

	for _, n := range names {
		fmt.Fprintf(&sb, "## %s\n\n", n)
		v, _ := s.Result(n)
		body, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s result: %w", n, err)
		}
		sb.WriteString("```json\n")
		sb.Write(body)
		sb.WriteString("\n```\n\n")
	}
	return []byte(sb.String()), nil
}

// RendererFor returns the renderer for a format name; anything other than
// "json" renders Markdown.
func RendererFor(format string) Renderer {
	if strings.EqualFold(format, "json") {
		return &JSONRenderer{}
	}
	return &MarkdownRenderer{}
}
