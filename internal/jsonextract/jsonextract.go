// Package jsonextract pulls a single JSON object out of raw LLM output.
//
// Model output is rarely clean JSON: it may be wrapped in Markdown fences,
// tagged with "harmony" channel tokens (<|channel|>analysis<|message|>...),
// preceded by chatty preamble, or truncated mid-object by a token limit.
// Extract applies a fixed strategy — channel-aware extraction, then plain
// balanced-brace scanning — and returns the first candidate that survives
// schema-example rejection; ExtractAndRepair adds bracket repair for
// truncated output.
package jsonextract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/match"
	"github.com/tidwall/sjson"
)

// ParseError reports that no usable JSON object could be recovered from the
// input text.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "jsonextract: " + e.Reason
}

var (
	errNoChannelFound   = &ParseError{Reason: "noChannelFound"}
	errNoBalancedJSON   = &ParseError{Reason: "noBalancedJson"}
	errSchemaExample    = &ParseError{Reason: "schemaExampleRejected"}
	errRepairExhausted  = &ParseError{Reason: "repairExhausted"}
)

// channelAliasPatterns maps synonymous harmony channel names to one of the
// three canonical channels the extractor understands. Vendors keep coining
// variants of the same few ideas (think, thinking, thoughts, reason,
// reasoning), so the table is glob patterns matched in order rather than an
// exact-name map; the first hit wins.
var channelAliasPatterns = []struct {
	pattern   string
	canonical string
}{
	{"analysis", "analysis"},
	{"think*", "analysis"},
	{"thought*", "analysis"},
	{"reason*", "analysis"},
	{"comment*", "commentary"},
	{"channel", "commentary"},
	{"final", "final"},
	{"message", "final"},
	{"response", "final"},
	{"answer", "final"},
	{"assistant", "final"},
}

// canonicalChannel resolves a raw channel name (already lowercased) to its
// canonical channel, or returns it unchanged when no alias pattern matches.
func canonicalChannel(name string) string {
	for _, a := range channelAliasPatterns {
		if match.Match(name, a.pattern) {
			return a.canonical
		}
	}
	return name
}

var channelTagRe = regexp.MustCompile(`<\|(\w+)\|>`)

// channelMessageRe matches a harmony channel-switch marker followed by its
// message opener, e.g. "<|channel|>final<|message|>". The captured group is
// the channel name.
var channelMessageRe = regexp.MustCompile(`<\|channel\|>(\w+)<\|message\|>`)

// schemaExampleRe matches the telltale signatures of a schema-template echo:
// an unquoted type name or alternation after a colon, e.g. `"start_ms": number,`
// or `"role": "solo" | "ensemble"`.
var schemaExampleRe = regexp.MustCompile(`:\s*(number|string|boolean|object|array)\s*[,}]|"\s*\|\s*"`)

// Extract recovers the single intended JSON object from raw model output.
// Candidates matching a schema-example signature are skipped in favor of
// later balanced objects in the same text. It returns a [*ParseError] when
// no balanced object can be found after both channel-aware and plain
// extraction, or when every balanced object is a schema echo.
func Extract(raw string) (string, error) {
	if span, ok := extractFromFinalChannel(raw); ok {
		if candidate, err := pickCandidate(span); err == nil {
			return candidate, nil
		} else if !errors.Is(err, errNoBalancedJSON) {
			return "", err
		}
	}

	stripped := stripChannelTokens(raw)
	stripped = stripPreamble(stripped)

	return pickCandidate(stripped)
}

// pickCandidate walks s for balanced objects in order and returns the first
// one that is not a schema-template echo.
func pickCandidate(s string) (string, error) {
	rejected := false
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end, ok := balancedEnd(s, i)
		if !ok {
			continue
		}
		candidate := s[i : end+1]
		if rejectSchemaExample(candidate) != nil {
			rejected = true
			i = end
			continue
		}
		return candidate, nil
	}
	if rejected {
		return "", errSchemaExample
	}
	return "", errNoBalancedJSON
}

// ExtractAndRepair runs Extract and, on failure to find a balanced object,
// attempts to repair the largest candidate fragment by closing open
// strings, brackets and braces. It is the entry point used at end-of-stream
// when the model's output may have been truncated mid-object.
func ExtractAndRepair(raw string) (string, error) {
	candidate, err := Extract(raw)
	if err == nil {
		return candidate, nil
	}
	if !errors.Is(err, errNoBalancedJSON) {
		return "", err
	}

	repaired, ok := Repair(raw)
	if !ok {
		return "", errRepairExhausted
	}
	if err := rejectSchemaExample(repaired); err != nil {
		return "", err
	}
	return repaired, nil
}

// extractFromFinalChannel scans for "<|channel|>NAME<|message|>" markers and
// returns the text of the *last* message span whose channel name normalizes
// to "final". A span runs from the end of its own marker to the start of
// the next channel-switch marker (or to the end of the string).
func extractFromFinalChannel(raw string) (string, bool) {
	matches := channelMessageRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return "", false
	}

	type span struct {
		channel    string
		start, end int
	}
	spans := make([]span, len(matches))
	for i, m := range matches {
		channel := canonicalChannel(strings.ToLower(raw[m[2]:m[3]]))
		contentStart := m[1]
		contentEnd := len(raw)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		spans[i] = span{channel: channel, start: contentStart, end: contentEnd}
	}

	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].channel == "final" {
			return raw[spans[i].start:spans[i].end], true
		}
	}
	return "", false
}

// stripChannelTokens removes all harmony tag tokens, collapsing the text
// into a single stream so that a plain balanced-object scan can still find
// the intended JSON when no "final" channel was recognized.
func stripChannelTokens(raw string) string {
	return channelTagRe.ReplaceAllString(raw, "\n")
}

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)```")

var preamblePrefixes = []string{
	"here is the json",
	"here's the json",
	"the following is",
	"here is the plan",
	"sure, here",
	"json:",
}

// stripPreamble removes Markdown code fences and common chatty preambles
// that precede the JSON object in a plain (non-channel-tagged) response.
func stripPreamble(s string) string {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	for _, p := range preamblePrefixes {
		if strings.HasPrefix(lower, p) {
			if idx := strings.IndexByte(trimmed, '{'); idx >= 0 {
				return trimmed[idx:]
			}
		}
	}
	return s
}

// balancedEnd returns the index of the closing brace matching the opening
// brace at start, or false if the string ends before braces balance.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// rejectSchemaExample fails candidates that look like a schema template
// echoed back by the model (unquoted type placeholders, enum alternations)
// rather than real data.
func rejectSchemaExample(candidate string) error {
	if schemaExampleRe.MatchString(candidate) {
		return errSchemaExample
	}
	return nil
}

// Repair attempts to recover a truncated JSON object from raw text. It
// walks the string tracking open braces/brackets and string state, then
// appends the minimal sequence of closing tokens to rebalance it, trimming
// a trailing comma immediately before any closer it inserts.
//
// Repair operates on the first "{" found in raw; text before it is
// discarded. It returns false if no opening brace exists at all.
func Repair(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	s := raw[start:]

	var stack []byte
	inString := false
	escaped := false
	lastNonSpace := byte(0)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			lastNonSpace = c
		}
	}

	var b strings.Builder
	b.WriteString(s)

	if inString {
		b.WriteByte('"')
		lastNonSpace = '"'
	}

	if lastNonSpace == ',' {
		trimmed := strings.TrimRight(b.String(), " \t\r\n")
		trimmed = strings.TrimSuffix(trimmed, ",")
		b.Reset()
		b.WriteString(trimmed)
	}

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			b.WriteByte('}')
		case '[':
			b.WriteByte(']')
		}
	}

	repaired := b.String()
	if !gjson.Valid(repaired) {
		return "", false
	}
	return repaired, true
}

// Normalize rewrites candidate through sjson so that downstream
// encoding/json unmarshal always sees canonical JSON (e.g. after Repair
// has spliced in closing tokens by hand).
func Normalize(candidate string) (string, error) {
	if !gjson.Valid(candidate) {
		return "", errNoBalancedJSON
	}
	// A no-op Set on the root forces sjson to re-encode through its
	// canonicalizing writer, which is the cheapest way to normalize
	// whitespace and drop an already-valid trailing structure.
	out, err := sjson.SetRaw("{}", "root", candidate)
	if err != nil {
		return "", err
	}
	return gjson.Get(out, "root").Raw, nil
}
