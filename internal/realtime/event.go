package realtime

import "fmt"

// Event is the wire shape of every server-to-client message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Topic names. project:{id} carries project-wide broadcasts, user:{id}
// carries one recipient's personal events.

func ProjectTopic(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

func UserTopic(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
