package config

import "slices"

// Diff describes what changed between two configs. Only fields that are
// safe to hot-reload without restarting in-flight performances are tracked.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DirectorsChanged bool
	ProviderChanges  []ProviderDiff

	EngineDefaultsChanged bool
}

// ProviderDiff describes what changed for a single named provider entry
// between two configs.
type ProviderDiff struct {
	Name          string
	ModelChanged  bool
	BaseURLChanged bool
	Added         bool
	Removed       bool
}

// ComputeDiff compares old and new configs and returns what changed.
func ComputeDiff(old, updated *Config) Diff {
	var d Diff

	if old.Server.LogLevel != updated.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = updated.Server.LogLevel
	}

	if directorsChanged(old.Directors, updated.Directors) {
		d.DirectorsChanged = true
	}

	for name, oldEntry := range old.Providers {
		newEntry, exists := updated.Providers[name]
		if !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Removed: true})
			continue
		}
		pd := diffProvider(name, oldEntry, newEntry)
		if pd.ModelChanged || pd.BaseURLChanged {
			d.ProviderChanges = append(d.ProviderChanges, pd)
		}
	}
	for name := range updated.Providers {
		if _, exists := old.Providers[name]; !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Added: true})
		}
	}

	if old.Engine.DefaultLightPreset != updated.Engine.DefaultLightPreset ||
		old.Engine.DefaultCameraView != updated.Engine.DefaultCameraView {
		d.EngineDefaultsChanged = true
	}

	return d
}

// directorsChanged reports whether any role's primary or fallback chain
// differs between the two configs.
func directorsChanged(old, updated DirectorsConfig) bool {
	return old.Performance != updated.Performance ||
		old.Stage != updated.Stage ||
		old.Camera != updated.Camera ||
		!slices.Equal(old.PerformanceFallbacks, updated.PerformanceFallbacks) ||
		!slices.Equal(old.StageFallbacks, updated.StageFallbacks) ||
		!slices.Equal(old.CameraFallbacks, updated.CameraFallbacks)
}

// diffProvider compares two provider entries with the same name.
func diffProvider(name string, old, updated ProviderEntry) ProviderDiff {
	return ProviderDiff{
		Name:           name,
		ModelChanged:   old.Model != updated.Model,
		BaseURLChanged: old.BaseURL != updated.BaseURL,
	}
}
