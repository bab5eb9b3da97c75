// Package protocol holds the fixed texts and reserved commands shared
// by the server and client sides of the support chat.
package protocol

import "strings"

// DefaultWelcome is sent unsolicited as the first frame of a session.
const DefaultWelcome = "Welcome to ABC Customer Service! How can I help you?"

// BusyNotice is the only frame a connection receives when the server is
// at capacity.  The connection is closed right after it.
const BusyNotice = "Server busy: too many active sessions, try again later"

// Sentinels end a session when sent as a whole request.
var Sentinels = []string{"exit", "bye"}

// IsSentinel reports whether text is a session-ending command.
// Comparison ignores case and surrounding whitespace.
func IsSentinel(text string) bool {
	t := strings.TrimSpace(text)
	for _, s := range Sentinels {
		if strings.EqualFold(t, s) {
			return true
		}
	}
	return false
}

// IsBusy reports whether a frame is the server's capacity notice.
func IsBusy(text string) bool {
	return strings.HasPrefix(text, "Server busy")
}
