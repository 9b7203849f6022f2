package timeline

import "math"

// Clamp01 restricts v to the closed unit interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Apply evaluates the named easing curve at t ∈ [0,1]. Unknown names fall
// back to linear. Every curve satisfies e(0)=0, e(1)=1, except step, which
// holds 0 until t reaches 1.
func (e Easing) Apply(t float64) float64 {
	t = Clamp01(t)
	switch e {
	case EaseIn:
		return t * t
	case EaseOut:
		return 1 - (1-t)*(1-t)
	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	case EaseBounce:
		return bounceOut(t)
	case EaseElastic:
		return elasticOut(t)
	case EaseStep:
		if t >= 1 {
			return 1
		}
		return 0
	case EaseLinear, "":
		return t
	default:
		return t
	}
}

// bounceOut implements the standard four-segment bounce-out curve.
func bounceOut(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75

	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// elasticOut implements a decayed-sine elastic-out curve.
func elasticOut(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	const c4 = 2 * math.Pi / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

// Progress returns the fraction of block duration elapsed at time t,
// clamped to [0,1].
func Progress(startMS, durationMS int, t float64) float64 {
	if durationMS <= 0 {
		return 1
	}
	return Clamp01((t - float64(startMS)) / float64(durationMS))
}

// FadeIn returns the fade-in multiplier at time t for a block starting at
// startMS with the given fadeInMS. When fadeInMS<=0 the block is always at
// full opacity.
func FadeIn(startMS, fadeInMS int, t float64) float64 {
	if fadeInMS <= 0 {
		return 1
	}
	return Clamp01((t - float64(startMS)) / float64(fadeInMS))
}

// FadeOut returns the fade-out multiplier at time t for a block ending at
// endMS with the given fadeOutMS. When fadeOutMS<=0 the block stays at full
// opacity until it deactivates.
func FadeOut(endMS, fadeOutMS int, t float64) float64 {
	if fadeOutMS <= 0 {
		return 1
	}
	return Clamp01((float64(endMS) - t) / float64(fadeOutMS))
}

// Fade combines FadeIn and FadeOut for a block.
func Fade(b *Block, t float64) float64 {
	return FadeIn(b.StartMS, b.FadeInMS, t) * FadeOut(b.EndMS(), b.FadeOutMS, t)
}
