package capture

import "strings"

// Blacklist holds window-title rules. A window matches when its title or class
// contains a rule, ignoring case.
type Blacklist struct {
	rules []string
}

// NewBlacklist normalizes rules; blank rules are dropped.
func NewBlacklist(rules []string) *Blacklist {
	b := &Blacklist{}
	for _, r := range rules {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			b.rules = append(b.rules, r)
		}
	}
	return b
}

// Match returns the first matching rule.
func (b *Blacklist) Match(w WindowInfo) (string, bool) {
	title := strings.ToLower(w.Title)
	class := strings.ToLower(w.Class)
	for _, r := range b.rules {
		if strings.Contains(title, r) || strings.Contains(class, r) {
			return r, true
		}
	}
	return "", false
}
