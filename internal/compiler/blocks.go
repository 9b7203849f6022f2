package compiler

import "github.com/avatarstage/performer/internal/timeline"

// directBlock builds the typed block for verbs that map cleanly onto one
// layer's data shape. ok is false for any verb not in this table (callers
// fall through to the external-actions list).
func directBlock(action timeline.PlanAction, planDuration int) (*timeline.Block, bool) {
	switch action.Action {
	case "set_mood":
		return blendshapeMoodBlock(action, planDuration), true
	case "make_facial_expression":
		return expressionBlock(action, planDuration), true
	case "set_value":
		return setValueBlock(action, planDuration), true
	case "speak_emoji":
		return emojiBlock(action, planDuration), true
	case "set_light_preset":
		return lightBlock(action, planDuration), true
	case "set_view":
		return cameraStaticBlock(action, planDuration), true
	case "camera_dolly", "camera_pan", "camera_tilt", "camera_orbit", "camera_punch", "camera_sweep", "camera_shake":
		return cameraMoveBlock(action, planDuration), true
	case "post_bloom", "post_vignette", "post_chromatic", "post_glitch", "post_pixelation":
		return fxBlock(action, planDuration), true
	default:
		return nil, false
	}
}

func blendshapeMoodBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durMood), planDuration)
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
		StartMS: start, DurationMS: dur, Label: "action:set_mood",
		Data: timeline.BlendshapeBlockData{Intensity: 1, Mood: timeline.Mood(stringArg(a.Args, "mood", ""))},
	}
}

func expressionBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durExpression), planDuration)
	morphs := floatMapArg(a.Args, "morphs")
	if morphs == nil {
		morphs = floatMapArg(a.Args, "targetMorphs")
	}
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
		StartMS: start, DurationMS: dur, Label: "action:make_facial_expression",
		Data: timeline.BlendshapeBlockData{Intensity: floatArg(a.Args, "intensity", 1), TargetMorphs: morphs},
	}
}

func setValueBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durExpression), planDuration)
	morph := stringArg(a.Args, "morphName", stringArg(a.Args, "name", ""))
	value := floatArg(a.Args, "value", 0)
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerBlendshape, LayerType: timeline.LayerBlendshape,
		StartMS: start, DurationMS: dur, Label: "action:set_value",
		Data: timeline.BlendshapeBlockData{Intensity: 1, TargetMorphs: map[string]float64{morph: value}},
	}
}

func emojiBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durExpression), planDuration)
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerEmoji, LayerType: timeline.LayerEmoji,
		StartMS: start, DurationMS: dur, Label: "action:speak_emoji",
		Data: timeline.EmojiBlockData{Emoji: stringArg(a.Args, "emoji", "😐")},
	}
}

func lightBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durMood), planDuration)
	transition := timeline.LightTransition(stringArg(a.Args, "transition", string(timeline.TransitionFade)))
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerLighting, LayerType: timeline.LayerLighting,
		StartMS: start, DurationMS: dur, Label: "action:set_light_preset",
		Data: timeline.LightingBlockData{
			Preset: timeline.LightPreset(stringArg(a.Args, "preset", "")), Transition: transition,
			AudioPulse: boolArg(a.Args, "audioPulse", false),
		},
	}
}

func cameraStaticBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durCameraMove), planDuration)
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerCamera, LayerType: timeline.LayerCamera,
		StartMS: start, DurationMS: dur, Label: "action:set_view",
		Data: timeline.CameraBlockData{View: timeline.CameraView(stringArg(a.Args, "view", "")), Movement: timeline.MoveStatic},
	}
}

func cameraMoveBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durCameraMove), planDuration)
	data := timeline.CameraBlockData{View: timeline.CameraView(stringArg(a.Args, "view", ""))}

	switch a.Action {
	case "camera_dolly":
		data.Movement = timeline.MoveDolly
		data.Distance = floatArg(a.Args, "distance", 0)
	case "camera_pan":
		data.Movement = timeline.MovePan
		data.RotateY = floatArg(a.Args, "rotateY", 0)
	case "camera_tilt":
		data.Movement = timeline.MoveTilt
		data.RotateX = floatArg(a.Args, "rotateX", 0)
	case "camera_orbit":
		data.Movement = timeline.MoveOrbit
		data.Orbit = floatArg(a.Args, "orbit", 0)
		data.Distance = floatArg(a.Args, "distance", 0)
	case "camera_punch":
		data.Movement = timeline.MovePunch
		data.Punch = floatArg(a.Args, "punch", 0)
	case "camera_sweep":
		data.Movement = timeline.MoveSweep
		data.StartAngle = floatArg(a.Args, "startAngle", 0)
		data.EndAngle = floatArg(a.Args, "endAngle", 0)
	case "camera_shake":
		data.Movement = timeline.MoveShake
		data.ShakeFrequencyHz = floatArg(a.Args, "frequency", 15)
		data.ShakeIntensity = floatArg(a.Args, "intensity", 1)
	}

	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerCamera, LayerType: timeline.LayerCamera,
		StartMS: start, DurationMS: dur, Label: "action:" + a.Action, Data: data,
	}
}

var fxTagByVerb = map[string]timeline.FXTag{
	"post_bloom":      timeline.FXBloom,
	"post_vignette":   timeline.FXVignette,
	"post_chromatic":  timeline.FXChromatic,
	"post_glitch":     timeline.FXGlitch,
	"post_pixelation": timeline.FXPixelation,
}

func fxBlock(a timeline.PlanAction, planDuration int) *timeline.Block {
	start, dur := clampWindow(a.TimeMS, durationMSArg(a.Args, durFX), planDuration)
	fx := fxTagByVerb[a.Action]
	params := floatMapArg(a.Args, "params")
	if params == nil {
		params = defaultFXParams(fx)
	}
	return &timeline.Block{
		ID: timeline.NewBlockID(), LayerID: timeline.LayerFX, LayerType: timeline.LayerFX,
		StartMS: start, DurationMS: dur, Label: "action:" + a.Action,
		Data: timeline.FXBlockData{Effect: fx, Params: params},
	}
}
