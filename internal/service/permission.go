package service

import "strings"

// Wildcard grants every resource, every action, or both when held alone.
const Wildcard = "*"

// HasPermission reports whether held satisfies required. Tokens have the form
// "resource:action". A held token matches when it equals required, is "*",
// or wildcards exactly one side ("roster:*", "*:read"). Tokens without a
// separator never match except the bare "*".
func HasPermission(held []string, required string) bool {
	reqRes, reqAct, ok := strings.Cut(required, ":")
	if !ok || reqRes == "" || reqAct == "" {
		return false
	}

	for _, p := range held {
		if p == Wildcard || p == required {
			return true
		}
		res, act, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		if res == reqRes && act == Wildcard {
			return true
		}
		if res == Wildcard && act == reqAct {
			return true
		}
	}
	return false
}

// ValidPermission reports whether p is a well-formed grant: "*" or
// "resource:action" with both sides non-empty.
func ValidPermission(p string) bool {
	if p == Wildcard {
		return true
	}
	res, act, ok := strings.Cut(p, ":")
	return ok && res != "" && act != "" && !strings.Contains(act, ":")
}
