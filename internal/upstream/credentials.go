package upstream

import (
	"fmt"
	"strings"
)

const maxSessIDLen = 32

// Credentials builds the SOCKS5 sticky-session username A(S) from spec §3:
// "<user>-zone-<zone>-region-<region>-sessid-<cleaned(S.id)>-sessTime-<mins>".
// cleaned strips S.id to [A-Za-z0-9] and truncates to 32 chars. The same
// session id always produces the same string for a fixed configuration
// (spec §8 invariant 7, "sticky session identity").
func Credentials(baseUser, zone, region, sessionID string, sessionMinutes int) string {
	return fmt.Sprintf("%s-zone-%s-region-%s-sessid-%s-sessTime-%d",
		baseUser, zone, region, cleanSessionID(sessionID), sessionMinutes)
}

func cleanSessionID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
		if b.Len() >= maxSessIDLen {
			break
		}
	}
	return b.String()
}
