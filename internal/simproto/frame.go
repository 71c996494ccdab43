// Package simproto speaks the simulator's socket.io-flavoured websocket
// protocol: text frames prefixed with an opcode, carrying a JSON array of
// [event-name, event-data].
package simproto

import "strings"

// Event frames start with "4" (message) followed by "2" (event). Frames
// with any other prefix are protocol chatter and are ignored.
const eventPrefix = "42"

// IsEvent reports whether a raw frame carries a message event.
func IsEvent(frame string) bool {
	return strings.HasPrefix(frame, eventPrefix)
}

// Payload extracts the JSON array payload from an event frame. It returns
// ok=false when the frame carries the "no data" null sentinel (manual
// driving) or no parseable payload at all.
func Payload(frame string) (payload string, ok bool) {
	if strings.Contains(frame, "null") {
		return "", false
	}
	start := strings.Index(frame, "[")
	end := strings.LastIndex(frame, "}]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return frame[start : end+2], true
}
