package realtime

import (
	"fmt"
	"strings"
)

// TopicKind is the sub-topic multiplexed per schedule.
type TopicKind string

const (
	TopicStatus TopicKind = "status"
	TopicChat   TopicKind = "chat"

	topicPrefix = "schedule:"
)

// StatusTopic returns the status sub-topic name for a schedule slug.
func StatusTopic(slug string) string { return fmt.Sprintf("%s%s:%s", topicPrefix, slug, TopicStatus) }

// ChatTopic returns the chat sub-topic name for a schedule slug.
func ChatTopic(slug string) string { return fmt.Sprintf("%s%s:%s", topicPrefix, slug, TopicChat) }

// ParseTopic splits "schedule:<slug>:<kind>" into its parts.
func ParseTopic(topic string) (slug string, kind TopicKind, ok bool) {
	rest, found := strings.CutPrefix(topic, topicPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", false
	}
	slug, kind = rest[:i], TopicKind(rest[i+1:])
	if kind != TopicStatus && kind != TopicChat {
		return "", "", false
	}
	return slug, kind, true
}
