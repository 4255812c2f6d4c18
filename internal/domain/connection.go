package domain

// Connection is the server-side record of one live client connection.
// ChannelID is empty until the client has joined.
type Connection struct {
	ConnectionID string `json:"connectionId"`
	Email        string `json:"email"`
	ChannelID    string `json:"channelId,omitempty"`
}

// Joined reports whether the connection has been assigned a channel.
func (c Connection) Joined() bool {
	return c.ChannelID != ""
}

// JoinResult is returned to the client after a successful join.
type JoinResult struct {
	Email       string `json:"email"`
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	TeamID      string `json:"teamId"`
}

// ChannelInfo is the channel metadata exposed by the chat platform.
type ChannelInfo struct {
	ID     string
	Name   string
	TeamID string
}
