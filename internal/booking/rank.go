package booking

import "strings"

// MatchStrategy selects how a candidate's resource name is matched against the
// preferred-resource list.
type MatchStrategy int

const (
	// MatchExact compares names case-insensitively as whole strings.
	MatchExact MatchStrategy = iota
	// MatchSubstring matches when a preferred name appears anywhere in the
	// candidate's resource name, case-insensitively.
	MatchSubstring
)

// Rank scores a candidate (time, resource) pair. Lower is more preferred. A
// preference list position contributes its index; a non-empty list with no
// match contributes the list length; an empty list never penalizes anyone.
func Rank(timeKey, resourceName string, preferredTimes, preferredResources []string, strategy MatchStrategy) int {
	return 100*indexRank(timeKey, preferredTimes) + resourceRank(resourceName, preferredResources, strategy)
}

func indexRank(value string, preferred []string) int {
	if len(preferred) == 0 {
		return 0
	}
	for i, p := range preferred {
		if p == value {
			return i
		}
	}
	return len(preferred)
}

func resourceRank(name string, preferred []string, strategy MatchStrategy) int {
	if len(preferred) == 0 {
		return 0
	}
	for i, p := range preferred {
		switch strategy {
		case MatchSubstring:
			if strings.Contains(strings.ToLower(name), strings.ToLower(p)) {
				return i
			}
		default:
			if strings.EqualFold(name, p) {
				return i
			}
		}
	}
	return len(preferred)
}
