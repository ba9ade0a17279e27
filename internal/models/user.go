package models

// Identity is the caller identity supplied by the upstream gateway
type Identity struct {
	UserID      string
	DisplayName string
}
