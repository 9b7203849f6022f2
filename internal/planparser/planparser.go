// Package planparser incrementally validates streamed director JSON and, at
// end of stream, normalizes it into a [timeline.Plan].
//
// It never parses the whole buffer on every chunk: [Parser.Append] runs
// cheap regex probes for progress reporting, while the expensive
// extract-repair-normalize path in [Parser.Parse] runs exactly once, when
// the caller believes the stream has ended.
package planparser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/avatarstage/performer/internal/jsonextract"
	"github.com/avatarstage/performer/internal/timeline"
)

// Error is a plan-level validation failure.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "planparser: " + e.Reason }

var (
	// ErrNoSections is returned by Parse when the normalized plan has zero
	// sections; callers should treat this as grounds for the heuristic
	// fallback.
	ErrNoSections = &Error{Reason: "noSections"}

	// ErrSectionWindowInvalid is returned when every candidate section was
	// dropped for having an invalid (non-positive) window.
	ErrSectionWindowInvalid = &Error{Reason: "sectionWindowInvalid"}
)

var (
	thoughtsSummaryRe = regexp.MustCompile(`"thoughts_summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	roleOccurrenceRe  = regexp.MustCompile(`"role"\s*:\s*"(solo|ensemble)"`)
	labelRe           = regexp.MustCompile(`"label"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Progress is the cheap, append-time view into a still-streaming response.
type Progress struct {
	// ThoughtsSummary is populated the first time the field appears in the
	// buffer; it never changes after that.
	ThoughtsSummary string

	// SectionsFound counts "role": "solo"|"ensemble" occurrences seen so
	// far — a progress proxy, since the field is emitted near the end of
	// each section object.
	SectionsFound int

	// CurrentSection is the label of the most recently seen section, if
	// any.
	CurrentSection string

	// IsComplete flips true once the trimmed buffer ends in a closing
	// brace/bracket and a full JSON parse of it succeeds.
	IsComplete bool
}

// Parser is an append-only incremental validator for one streaming director
// response. It is not safe for concurrent use.
type Parser struct {
	buf             strings.Builder
	thoughtsSummary string
	thoughtsSet     bool
}

// New returns an empty Parser ready to receive chunks.
func New() *Parser { return &Parser{} }

// Append feeds the next chunk of streamed text and returns updated progress.
func (p *Parser) Append(chunk string) Progress {
	p.buf.WriteString(chunk)
	buf := p.buf.String()

	if !p.thoughtsSet {
		if m := thoughtsSummaryRe.FindStringSubmatch(buf); m != nil {
			p.thoughtsSummary = m[1]
			p.thoughtsSet = true
		}
	}

	var currentSection string
	if matches := labelRe.FindAllStringSubmatch(buf, -1); len(matches) > 0 {
		currentSection = matches[len(matches)-1][1]
	}

	trimmed := strings.TrimRight(buf, " \t\r\n")
	complete := (strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, "}]")) && gjson.Valid(trimmed)

	return Progress{
		ThoughtsSummary: p.thoughtsSummary,
		SectionsFound:   len(roleOccurrenceRe.FindAllString(buf, -1)),
		CurrentSection:  currentSection,
		IsComplete:      complete,
	}
}

// Buffer returns everything appended so far.
func (p *Parser) Buffer() string { return p.buf.String() }

// Reset clears the parser for reuse on a new stream.
func (p *Parser) Reset() {
	p.buf.Reset()
	p.thoughtsSummary = ""
	p.thoughtsSet = false
}

// directorEnvelope mirrors the director JSON response contract; every
// field is optional at this layer since Parse tolerates both the
// fully-wrapped and bare-sections shapes.
type directorEnvelope struct {
	ThoughtsSummary string `json:"thoughts_summary"`
	Analysis        string `json:"analysis"`
	SelectionReason string `json:"selection_reason"`
	Plan            *struct {
		Title    string              `json:"title"`
		Sections []rawSection        `json:"sections"`
		Actions  []timeline.PlanAction `json:"actions"`
	} `json:"plan"`
	// Sections/Actions cover the bare {sections:[...]} variant.
	Sections []rawSection          `json:"sections"`
	Actions  []timeline.PlanAction `json:"actions"`
}

type rawSection struct {
	Label   string                `json:"label"`
	StartMS int                   `json:"start_ms"`
	EndMS   int                   `json:"end_ms"`
	Role    string                `json:"role"`
	Mood    string                `json:"mood"`
	Camera  string                `json:"camera"`
	Light   string                `json:"light"`
	FX      string                `json:"fx"`
	Notes   string                `json:"notes"`
	Actions []timeline.PlanAction `json:"actions"`
}

// Parse runs model-aware extraction and bracket repair over the
// accumulated buffer, then normalizes the result into a [timeline.Plan]:
// both {plan:{sections:[]}} and bare {sections:[]} (and lenient nested
// variants) are accepted; each section's window is clamped into
// [0, durationMS]; sections whose window collapses are dropped; enum
// values are coerced: an unknown role becomes solo, and any other unknown
// enum value drops to the zero value;
// action timestamps are clamped into their owning section's window; emoji
// action args are mapped to a fixed set of face emojis with a neutral
// fallback.
func (p *Parser) Parse(durationMS int) (*timeline.Plan, error) {
	return Parse(p.buf.String(), durationMS)
}

// Parse is the free-function form of [Parser.Parse], usable once the full
// response text is already in hand (e.g. a non-streaming Complete call).
func Parse(raw string, durationMS int) (*timeline.Plan, error) {
	candidate, err := jsonextract.ExtractAndRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("planparser: extract: %w", err)
	}

	var env directorEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return nil, fmt.Errorf("planparser: decode: %w", err)
	}

	rawSections := env.Sections
	actions := env.Actions
	title := ""
	if env.Plan != nil {
		rawSections = env.Plan.Sections
		actions = env.Plan.Actions
		title = env.Plan.Title
	}

	plan := &timeline.Plan{
		Title:    title,
		Actions:  clampGlobalActions(actions, durationMS),
		Sections: make([]timeline.PlanSection, 0, len(rawSections)),
	}

	droppedAny := false
	for _, rs := range rawSections {
		sec, ok := normalizeSection(rs, durationMS)
		if !ok {
			droppedAny = true
			continue
		}
		plan.Sections = append(plan.Sections, sec)
	}

	if len(plan.Sections) == 0 {
		if droppedAny {
			return nil, ErrSectionWindowInvalid
		}
		return nil, ErrNoSections
	}

	return plan, nil
}

func normalizeSection(rs rawSection, durationMS int) (timeline.PlanSection, bool) {
	start := clampInt(rs.StartMS, 0, durationMS)
	end := clampInt(rs.EndMS, 0, durationMS)
	if end <= start {
		return timeline.PlanSection{}, false
	}

	role := timeline.Role(rs.Role)
	if role != timeline.RoleSolo && role != timeline.RoleEnsemble {
		role = timeline.RoleSolo
	}

	sec := timeline.PlanSection{
		Label:   rs.Label,
		StartMS: start,
		EndMS:   end,
		Role:    role,
		Notes:   rs.Notes,
	}
	if m := timeline.Mood(rs.Mood); m.IsValid() {
		sec.Mood = m
	}
	if v := timeline.CameraView(rs.Camera); v.IsValid() {
		sec.Camera = v
	}
	if l := timeline.LightPreset(rs.Light); l.IsValid() {
		sec.Light = l
	}
	if f := timeline.FXTag(rs.FX); isValidFX(f) {
		sec.FX = f
	}

	sec.Actions = make([]timeline.PlanAction, 0, len(rs.Actions))
	for _, a := range rs.Actions {
		a.TimeMS = clampInt(a.TimeMS, start, end)
		a.Args = normalizeArgs(a.Action, a.Args)
		sec.Actions = append(sec.Actions, a)
	}
	return sec, true
}

func clampGlobalActions(actions []timeline.PlanAction, durationMS int) []timeline.PlanAction {
	out := make([]timeline.PlanAction, 0, len(actions))
	for _, a := range actions {
		a.TimeMS = clampInt(a.TimeMS, 0, durationMS)
		a.Args = normalizeArgs(a.Action, a.Args)
		out = append(out, a)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var validFX = map[timeline.FXTag]bool{
	timeline.FXBloom: true, timeline.FXVignette: true, timeline.FXChromatic: true,
	timeline.FXGlitch: true, timeline.FXPixelation: true,
}

func isValidFX(f timeline.FXTag) bool { return validFX[f] }

// emojiByMood maps the closed mood vocabulary (and a few common director
// synonyms) to a fixed set of face emojis. Unknown names fall back to
// neutral.
var emojiByMood = map[string]string{
	"happy":   "😀",
	"sad":     "😢",
	"love":    "😍",
	"fear":    "😨",
	"angry":   "😠",
	"disgust": "🤢",
	"sleep":   "😴",
	"neutral": "😐",
	"surprise": "😲",
	"laugh":   "😂",
	"wink":    "😉",
}

const neutralEmoji = "😐"

// normalizeArgs rewrites a raw "emoji" arg, on any verb that carries one,
// into one of the fixed face emojis.
func normalizeArgs(action string, args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	raw, ok := args["emoji"]
	if !ok {
		return args
	}
	name, ok := raw.(string)
	if !ok {
		return args
	}
	if emoji, known := emojiByMood[strings.ToLower(strings.TrimSpace(name))]; known {
		args["emoji"] = emoji
	} else if !isFaceEmoji(name) {
		args["emoji"] = neutralEmoji
	}
	return args
}

// isFaceEmoji is a crude check for "already an emoji, not a name": any
// non-ASCII rune is accepted as-is rather than coerced to neutral.
func isFaceEmoji(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
