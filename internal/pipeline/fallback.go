package pipeline

import (
	"fmt"

	"github.com/avatarstage/performer/internal/timeline"
)

// HeuristicFallback synthesizes a deterministic plan when every Performance
// attempt fails: mood/camera/light rotate
// through their closed vocabularies by section index, every third section
// is marked ensemble (others solo), and any section longer than 3s gets one
// gesture injected at 40% of its duration.
func HeuristicFallback(sections []timeline.Section, durationMS int, defaultLight timeline.LightPreset, defaultCamera timeline.CameraView) *timeline.Plan {
	plan := &timeline.Plan{Title: "fallback", Sections: make([]timeline.PlanSection, len(sections))}

	for i, s := range sections {
		role := timeline.RoleSolo
		if (i+1)%3 == 0 {
			role = timeline.RoleEnsemble
		}

		ps := timeline.PlanSection{
			Label:   fmt.Sprintf("section-%d", i),
			StartMS: s.StartMS,
			EndMS:   s.EndMS,
			Role:    role,
			Mood:    timeline.Moods[i%len(timeline.Moods)],
			Camera:  rotateOr(timeline.Views, i, defaultCamera),
			Light:   rotateLight(i, defaultLight),
		}

		if dur := s.EndMS - s.StartMS; dur > 3000 {
			ps.Actions = append(ps.Actions, timeline.PlanAction{
				TimeMS: s.StartMS + int(float64(dur)*0.4),
				Action: "play_gesture",
				Args:   map[string]any{"name": "nod"},
			})
		}

		plan.Sections[i] = ps
	}
	return plan
}

func rotateOr(views []timeline.CameraView, i int, fallback timeline.CameraView) timeline.CameraView {
	if len(views) == 0 {
		return fallback
	}
	return views[i%len(views)]
}

func rotateLight(i int, fallback timeline.LightPreset) timeline.LightPreset {
	if len(timeline.LightPresets) == 0 {
		return fallback
	}
	return timeline.LightPresets[i%len(timeline.LightPresets)]
}
