package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"mime"
	"strings"
)

// Normalize turns a transcript response body into one string. Accepted shapes:
// a WebVTT document, a JSON string, a JSON array of segments (strings or
// objects with "text"), a JSON object holding either of those, or plain text.
func Normalize(contentType string, body []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	trimmed := bytes.TrimSpace(body)

	switch {
	case mediaType == "text/vtt" || bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return flattenVTT(trimmed)
	case mediaType == "application/json" || (len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{' || trimmed[0] == '"')):
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			if mediaType == "application/json" {
				return "", fmt.Errorf("transcript: decode json: %w", err)
			}
			return collapse(string(trimmed)), nil
		}
		var parts []string
		collect(v, &parts)
		return collapse(strings.Join(parts, " ")), nil
	default:
		return collapse(string(trimmed)), nil
	}
}

var textKeys = []string{"transcript", "text", "segments", "content", "captions", "results"}

func collect(v any, parts *[]string) {
	switch t := v.(type) {
	case string:
		*parts = append(*parts, t)
	case []any:
		for _, el := range t {
			collect(el, parts)
		}
	case map[string]any:
		for _, k := range textKeys {
			if inner, ok := t[k]; ok {
				collect(inner, parts)
				return
			}
		}
	}
}

func flattenVTT(body []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)

	var parts []string
	inNote := false
	prev := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			inNote = false
			continue
		}
		if inNote || strings.Contains(line, "-->") || isNumeric(line) {
			continue
		}
		// header, comment and style blocks run until the next blank line
		if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION" {
			inNote = true
			continue
		}
		line = stripTags(line)
		// auto-generated captions repeat the previous cue's line
		if line == "" || line == prev {
			continue
		}
		parts = append(parts, line)
		prev = line
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("transcript: read vtt: %w", err)
	}
	return collapse(strings.Join(parts, " ")), nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// stripTags drops inline cue markup such as <c> or <00:00:01.000>.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
