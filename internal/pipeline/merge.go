package pipeline

import (
	"sort"
	"time"

	"github.com/avatarstage/performer/internal/timeline"
)

func nowMS() int64 { return time.Now().UnixMilli() }

// Merge zips the Performance, Stage and Camera plans by section index:
// Performance's role/mood/notes/actions are kept verbatim;
// light is filled from Stage (falling back to Performance, then
// defaultLight); camera is filled from Camera (same fallback chain); all
// actions are concatenated and sorted by time. stagePlan and cameraPlan may
// each be nil when that director failed independently.
func Merge(perfPlan, stagePlan, cameraPlan *timeline.Plan, defaultLight timeline.LightPreset, defaultCamera timeline.CameraView) *timeline.Plan {
	if perfPlan == nil {
		return &timeline.Plan{}
	}

	out := &timeline.Plan{
		Title:    perfPlan.Title,
		Sections: make([]timeline.PlanSection, len(perfPlan.Sections)),
	}

	for i, ps := range perfPlan.Sections {
		merged := ps
		merged.Actions = append([]timeline.PlanAction(nil), ps.Actions...)

		merged.Light = fillLight(ps.Light, sectionAt(stagePlan, i).Light, defaultLight)
		merged.Camera = fillCamera(ps.Camera, sectionAt(cameraPlan, i).Camera, defaultCamera)

		if stagePlan != nil && i < len(stagePlan.Sections) {
			merged.Actions = append(merged.Actions, stagePlan.Sections[i].Actions...)
		}
		if cameraPlan != nil && i < len(cameraPlan.Sections) {
			merged.Actions = append(merged.Actions, cameraPlan.Sections[i].Actions...)
		}
		sort.SliceStable(merged.Actions, func(a, b int) bool { return merged.Actions[a].TimeMS < merged.Actions[b].TimeMS })

		out.Sections[i] = merged
	}

	out.Actions = append(out.Actions, perfPlan.Actions...)
	if stagePlan != nil {
		out.Actions = append(out.Actions, stagePlan.Actions...)
	}
	if cameraPlan != nil {
		out.Actions = append(out.Actions, cameraPlan.Actions...)
	}
	sort.SliceStable(out.Actions, func(a, b int) bool { return out.Actions[a].TimeMS < out.Actions[b].TimeMS })

	return out
}

func sectionAt(plan *timeline.Plan, i int) timeline.PlanSection {
	if plan == nil || i >= len(plan.Sections) {
		return timeline.PlanSection{}
	}
	return plan.Sections[i]
}

func fillLight(perf, stage, def timeline.LightPreset) timeline.LightPreset {
	if stage != "" {
		return stage
	}
	if perf != "" {
		return perf
	}
	return def
}

func fillCamera(perf, camera, def timeline.CameraView) timeline.CameraView {
	if camera != "" {
		return camera
	}
	if perf != "" {
		return perf
	}
	return def
}
