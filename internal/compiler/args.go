package compiler

// floatArg reads a numeric arg, tolerating the fact that args decoded from
// JSON arrive as float64 regardless of whether the source literal was an
// integer.
func floatArg(args map[string]any, key string, def float64) float64 {
	if args == nil {
		return def
	}
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func stringArg(args map[string]any, key, def string) string {
	if args == nil {
		return def
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if args == nil {
		return def
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// durationMSArg resolves a block's explicit duration override from the
// action args: duration_ms and ms are already milliseconds; t matches the
// JSON contract's look_at(x,y,t) shape; duration is in seconds. The first
// key present wins, in that order; def is used when none are present.
func durationMSArg(args map[string]any, def int) int {
	if args == nil {
		return def
	}
	for _, key := range []string{"duration_ms", "ms", "t"} {
		if v, ok := args[key]; ok {
			if f, ok := toFloat(v); ok {
				return int(f)
			}
		}
	}
	if v, ok := args["duration"]; ok {
		if f, ok := toFloat(v); ok {
			return int(f * 1000)
		}
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func floatMapArg(args map[string]any, key string) map[string]float64 {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}
