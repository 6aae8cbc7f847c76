package smtp

import (
	"strings"

	"github.com/credprobe-dev/credprobe/domain/errors"
)

// methodPreference is the order AUTO tries server-advertised mechanisms.
var methodPreference = []AuthMethod{AuthLogin, AuthPlain, AuthCRAMMD5}

// parseAuthCapabilities extracts the mechanisms advertised on an EHLO
// reply's AUTH line ("250-AUTH LOGIN PLAIN" or "250 AUTH ..."). Mechanism
// names are normalized to upper case. Returns nil when the server
// advertises no AUTH capability.
func parseAuthCapabilities(reply string) []string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 5 || !isReplyCode(line[:3]) {
			continue
		}
		if line[3] != '-' && line[3] != ' ' {
			continue
		}
		rest := line[4:]
		if !strings.HasPrefix(strings.ToUpper(rest), "AUTH ") {
			continue
		}
		var methods []string
		for _, m := range strings.Fields(rest[5:]) {
			methods = append(methods, strings.ToUpper(m))
		}
		return methods
	}
	return nil
}

// resolveMethod picks the mechanism for this connection. An explicitly
// configured method is used as-is; AUTO intersects the advertised set with
// the supported set in preference order.
func resolveMethod(configured AuthMethod, advertised []string) (AuthMethod, error) {
	if configured != AuthAuto {
		return configured, nil
	}
	set := make(map[string]bool, len(advertised))
	for _, m := range advertised {
		set[m] = true
	}
	for _, m := range methodPreference {
		if set[string(m)] {
			return m, nil
		}
	}
	return "", &errors.AuthError{Reason: "no shared authentication mechanism"}
}
