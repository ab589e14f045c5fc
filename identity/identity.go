// Package identity holds the normalized identity claims returned by
// every provider adapter. Claims live only for the duration of one
// token-issuance call; nothing is persisted.
package identity

// User is the provider-agnostic view of an authenticated user.
// Subject is the provider's stable user id, rendered as a string
// regardless of how the provider encodes it.
type User struct {
	Subject  string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
