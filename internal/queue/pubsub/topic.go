package pubsub

import "strings"

// TopicPrefix is the topic shared by all attention traffic.
const TopicPrefix = "attentions"

// TopicName returns the topic a session's attentions are published on. In
// debug mode, or without a session, everything goes to the shared topic.
func TopicName(sessionID string, debug bool) string {
	sessionID = strings.TrimSpace(sessionID)
	if debug || sessionID == "" {
		return TopicPrefix
	}
	return TopicPrefix + "/" + sessionID
}
