// Package layers implements the seven per-track layer executors: viseme,
// dance, blendshape, emoji, lighting, camera, and fx. Each executor
// satisfies engine.Executor; they share the easing/fade helpers in
// internal/timeline and a small set of keyframe-bracketing and hex-color
// helpers defined here.
package layers

import (
	"sort"

	"github.com/avatarstage/performer/internal/timeline"
)

// bracketKeyframes returns the two keyframes bracketing elapsedMS (the
// time since the block's start), plus the local progress between them in
// [0,1]. If elapsedMS is before the first keyframe, both ends equal the
// first keyframe. If after the last, both equal the last. Keyframes must
// be sorted by TimeMS; bracketKeyframes sorts a copy if they are not.
func bracketKeyframes(keyframes []timeline.Keyframe, elapsedMS float64) (lo, hi timeline.Keyframe, localT float64) {
	kfs := keyframes
	if !sort.SliceIsSorted(kfs, func(i, j int) bool { return kfs[i].TimeMS < kfs[j].TimeMS }) {
		kfs = append([]timeline.Keyframe(nil), keyframes...)
		sort.Slice(kfs, func(i, j int) bool { return kfs[i].TimeMS < kfs[j].TimeMS })
	}
	if len(kfs) == 0 {
		return timeline.Keyframe{}, timeline.Keyframe{}, 0
	}
	if elapsedMS <= float64(kfs[0].TimeMS) {
		return kfs[0], kfs[0], 0
	}
	last := kfs[len(kfs)-1]
	if elapsedMS >= float64(last.TimeMS) {
		return last, last, 0
	}
	for i := 0; i < len(kfs)-1; i++ {
		a, b := kfs[i], kfs[i+1]
		if elapsedMS >= float64(a.TimeMS) && elapsedMS <= float64(b.TimeMS) {
			span := float64(b.TimeMS - a.TimeMS)
			if span <= 0 {
				return a, b, 0
			}
			return a, b, (elapsedMS - float64(a.TimeMS)) / span
		}
	}
	return last, last, 0
}

// lerp linearly interpolates between a and b at t (unclamped; callers
// clamp t via timeline.Clamp01 where the source easing hasn't already).
func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// lerpHex interpolates two "#rrggbb" colors component-wise, per-channel
// linear in sRGB-hex space. Malformed inputs fall back to b at t>=1 or a
// otherwise.
func lerpHex(a, b string, t float64) string {
	ar, ag, ab, aok := parseHex(a)
	br, bg, bb, bok := parseHex(b)
	if !aok || !bok {
		if t >= 1 {
			return b
		}
		return a
	}
	r := lerp(float64(ar), float64(br), t)
	g := lerp(float64(ag), float64(bg), t)
	bl := lerp(float64(ab), float64(bb), t)
	return formatHex(clampByte(r), clampByte(g), clampByte(bl))
}

func clampByte(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int(v + 0.5)
}

func parseHex(s string) (r, g, b int, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	r, g, b = hexByte(s[1:3]), hexByte(s[3:5]), hexByte(s[5:7])
	return r, g, b, r >= 0 && g >= 0 && b >= 0
}

func hexByte(s string) int {
	hi, ok1 := hexDigit(s[0])
	lo, ok2 := hexDigit(s[1])
	if !ok1 || !ok2 {
		return -1
	}
	return hi*16 + lo
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func formatHex(r, g, b int) string {
	const digits = "0123456789abcdef"
	buf := [7]byte{'#'}
	buf[1] = digits[r>>4]
	buf[2] = digits[r&0xf]
	buf[3] = digits[g>>4]
	buf[4] = digits[g&0xf]
	buf[5] = digits[b>>4]
	buf[6] = digits[b&0xf]
	return string(buf[:])
}
