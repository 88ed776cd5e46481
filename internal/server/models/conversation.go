package models

import "time"

// Conversation is a direct or group chat. MemberIDs is filled only by
// queries that load membership.
type Conversation struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	MemberIDs []int64   `json:"memberIds,omitempty"`
}
