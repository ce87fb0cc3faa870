package catalog

import "strings"

// Match checks if an event type name matches a subscription pattern.
//
// Supported patterns:
//
//	"payment.completed"  → exact match
//	"payment.*"          → matches payment.completed, payment.failed, etc.
//	"*"                  → matches everything
func Match(pattern, eventType string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	eventParts := strings.Split(eventType, ".")

	if len(patternParts) != len(eventParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp != "*" && pp != eventParts[i] {
			return false
		}
	}

	return true
}
