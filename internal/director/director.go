// Package director builds the three role-specific prompts (Performance,
// Stage, Camera) that the pipeline orchestrator (internal/pipeline) sends
// through the streaming LLM client, and estimates the token budget each
// role needs.
package director

import (
	"fmt"
	"strings"

	"github.com/avatarstage/performer/internal/timeline"
)

// Role names one of the three sequential director calls.
type Role string

const (
	RolePerformance Role = "performance"
	RoleStage       Role = "stage"
	RoleCamera      Role = "camera"
)

// Style is the closed vocabulary of performance styles mixed into every
// director's prompt alongside the seed.
type Style string

const (
	StyleCinematic   Style = "cinematic"
	StyleIntimate    Style = "intimate"
	StyleHype        Style = "hype"
	StyleMinimal     Style = "minimal"
	StyleExperimental Style = "experimental"
)

// SectionInput is the compact per-section record shared with every
// director: the section's own window/text plus whatever an earlier
// director already decided (role/mood/light), so later roles can stay
// consistent without re-deriving it.
type SectionInput struct {
	Index   int
	StartMS int
	EndMS   int
	Text    string

	Role   timeline.Role
	Mood   timeline.Mood
	Light  timeline.LightPreset
	Camera timeline.CameraView
}

// maxTextChars bounds how much of a section's lyric snippet is forwarded
// into the prompt.
const maxTextChars = 200

// Input carries everything needed to render any of the three role prompts.
// PerformancePlan is required for Stage and Camera; StagePlan is only used
// by Camera when the pipeline runs the two directors sequentially rather
// than in parallel.
type Input struct {
	Sections   []SectionInput
	DurationMS int
	Style      Style
	Seed       string

	PerformancePlan *timeline.Plan
	StagePlan       *timeline.Plan
}

// Build renders the system and user prompts for role given in.
func Build(role Role, in Input) (system, user string) {
	switch role {
	case RoleStage:
		return stageSystemPrompt(), stageUserPrompt(in)
	case RoleCamera:
		return cameraSystemPrompt(), cameraUserPrompt(in)
	default:
		return performanceSystemPrompt(), performanceUserPrompt(in)
	}
}

// EstimateMaxTokens returns a role-specific monotonic-in-count token
// budget: Performance emits the richest per-section payload (mood, role,
// full action lists), Stage is lighter (light + stage actions only), and
// Camera needs the least (a view name plus camera-scoped actions).
func EstimateMaxTokens(role Role, sectionCount int) int {
	const base = 400
	switch role {
	case RoleStage:
		return base + sectionCount*90
	case RoleCamera:
		return base + sectionCount*60
	default:
		return base + sectionCount*150
	}
}

func commonPreamble(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Song duration: %dms. Style: %s. Seed: %q.\n", in.DurationMS, in.Style, in.Seed)
	sb.WriteString("Sections:\n")
	for _, s := range in.Sections {
		text := s.Text
		if len(text) > maxTextChars {
			text = text[:maxTextChars]
		}
		fmt.Fprintf(&sb, "[%d] %d-%dms: %q", s.Index, s.StartMS, s.EndMS, text)
		if s.Role != "" {
			fmt.Fprintf(&sb, " role=%s", s.Role)
		}
		if s.Mood != "" {
			fmt.Fprintf(&sb, " mood=%s", s.Mood)
		}
		if s.Light != "" {
			fmt.Fprintf(&sb, " light=%s", s.Light)
		}
		if s.Camera != "" {
			fmt.Fprintf(&sb, " camera=%s", s.Camera)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const jsonContract = `Respond with JSON only, no prose, no Markdown fences. Output exactly this shape:
{
  "thoughts_summary": "<=50 words",
  "analysis": "string",
  "selection_reason": "string",
  "plan": {
    "title": "string",
    "sections": [
      { "label": "string", "start_ms": number, "end_ms": number, "role": "solo" | "ensemble",
        "mood"?: "<mood>", "camera"?: "<view>", "light"?: "<preset>", "notes"?: "string",
        "actions"?: [ { "time_ms": number, "action": "string", "args"?: {} } ] }
    ],
    "actions"?: [ { "time_ms": number, "action": "string", "args"?: {} } ]
  }
}`

const moodVocab = `Moods: neutral, happy, love, fear, sad, angry, disgust, sleep.`
const cameraVocab = `Camera views: full, mid, upper, head.`
const lightVocab = `Light presets: neon, noir, sunset, frost, crimson.`

func performanceSystemPrompt() string {
	return "You are the Performance director for a virtual avatar's song performance. " +
		"You decide, per lyrical section, the performer's mood, solo/ensemble role, and " +
		"body/face actions (gestures, expressions, eye contact, emoji). " + moodVocab + "\n" +
		performanceVerbs() + "\n" + jsonContract
}

func performanceVerbs() string {
	return "Performance-scoped verbs: set_mood, play_gesture, stop_gesture, make_facial_expression, " +
		"speak_emoji, speak_break, speak_marker, look_at, look_at_camera, make_eye_contact, " +
		"set_value, get_value, play_pose, stop_pose, play_animation, stop_animation."
}

func performanceUserPrompt(in Input) string {
	return commonPreamble(in) + "\nEmit mood, role, and an action list for every section."
}

func stageSystemPrompt() string {
	return "You are the Stage director. You may only change each section's light preset and add " +
		"stage-scoped actions; do not alter role, mood, or camera. " + lightVocab + "\n" +
		"Stage-scoped verbs: set_light_preset, set_environment, set_background, " +
		"play_background_audio, stop_background_audio.\n" + jsonContract
}

func stageUserPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString(commonPreamble(in))
	sb.WriteString("\nThe Performance director has already decided mood/role/actions shown above; ")
	sb.WriteString("only add light and stage actions per section.")
	return sb.String()
}

func cameraSystemPrompt() string {
	return "You are the Camera director. You may only change each section's camera view and add " +
		"camera-scoped actions; do not alter role, mood, or light. " + cameraVocab + "\n" +
		"Camera-scoped verbs: set_view, camera_dolly, camera_pan, camera_tilt, camera_orbit, " +
		"camera_shake, camera_punch, camera_sweep.\n" + jsonContract
}

func cameraUserPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString(commonPreamble(in))
	sb.WriteString("\nThe Performance (and, if present, Stage) director's choices are shown above; ")
	sb.WriteString("only add camera view and camera actions per section.")
	return sb.String()
}
