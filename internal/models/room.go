package models

// MemberInfo is one member of a room as reported by the HTTP API
type MemberInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// RoomInfo describes a room and its current members
type RoomInfo struct {
	Room    string       `json:"room"`
	Members []MemberInfo `json:"members"`
	Count   int          `json:"count"`
}

// RoomSummary is a room entry in the room listing
type RoomSummary struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}
