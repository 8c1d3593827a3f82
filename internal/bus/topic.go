package bus

import "strings"

// Topic segments are separated by '.'. In a subscription pattern the segment
// "*" matches exactly one topic segment and ">" matches one or more trailing
// segments.

// MatchTopic reports whether a pattern matches a concrete topic.
func MatchTopic(pattern, topic string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchSegments(pattern, topic []string) bool {
	for i, seg := range pattern {
		if seg == ">" {
			// '>' must be last and consume at least one segment
			return i == len(pattern)-1 && len(topic) > i
		}
		if i >= len(topic) {
			return false
		}
		if seg != "*" && seg != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}
