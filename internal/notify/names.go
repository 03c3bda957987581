package notify

import "strings"

const defaultDisplayName = "Movie Lover"

// DisplayName picks the first usable name: first+last, either alone,
// username, the email local part, fallback, then a generic greeting.
// Literal "null" tokens left by upstream serializers count as empty.
func DisplayName(firstName, lastName, username, email, fallback string) string {
	first := clean(firstName)
	last := clean(lastName)
	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}

	if name := clean(username); name != "" {
		return name
	}

	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return local
	}

	if name := clean(fallback); name != "" {
		return name
	}

	return defaultDisplayName
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "null null", "undefined":
		return ""
	}
	return s
}
