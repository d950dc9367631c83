package feed

// normalizeType maps backend-specific event vocabulary onto the shared one.
// Unknown types are dropped by the caller.
func normalizeType(backendType string) (string, bool) {
	switch backendType {
	case "active", "available", "session_connected":
		return "connected", true
	case "inactive", "session_disconnected":
		return "disconnected", true
	case "playing", "will_play", "play":
		return "playing", true
	case "paused", "pause":
		return "paused", true
	case "stopped", "not_playing", "stop":
		return "stopped", true
	case "seek", "seeked", "position_changed":
		return "seeking", true
	case "metadata", "track_changed", "track":
		return "metadata", true
	case "volume", "volume_changed":
		return "volume", true
	default:
		return "", false
	}
}

// normalizePayload lifts the well-known data fields into the status payload
// shape consumed by the coordinator and external subscribers.
func normalizePayload(kind string, data map[string]any) map[string]any {
	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}

	switch kind {
	case "connected":
		payload["connected"] = true
	case "disconnected":
		payload["connected"] = false
	case "playing":
		payload["is_playing"] = true
	case "paused", "stopped":
		payload["is_playing"] = false
	}

	if uri := stringField(data, "uri", "track_uri"); uri != "" {
		payload["track_uri"] = uri
	}
	return payload
}

// stringField returns the first present string among the given keys.
func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key].(string); ok {
			return v
		}
	}
	return ""
}

// intField returns the first present numeric value among the given keys.
// JSON numbers arrive as float64.
func intField(data map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := data[key].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case int:
			return int64(v)
		}
	}
	return 0
}
