package domain

// User is the author of a message as shown to clients.
type User struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// File is an attachment of a message.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl,omitempty"`
}

// Reaction is an emoji reaction on a message.
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// Message is the normalized chat message pushed to clients and returned from
// history and replies queries.
type Message struct {
	TS         string     `json:"ts"`
	User       User       `json:"user"`
	Text       string     `json:"text"`
	ThreadID   string     `json:"threadId,omitempty"`
	ReplyCount int        `json:"replyCount,omitempty"`
	Reactions  []Reaction `json:"reactions,omitempty"`
	Files      []File     `json:"files"`
}

// UserProfile is the inline profile some platform messages carry.
type UserProfile struct {
	RealName string
	Image48  string
}

// PlatformMessage is the subset of a chat platform message the normalizer
// reads.
type PlatformMessage struct {
	TS          string
	Type        string
	SubType     string
	Channel     string
	User        string
	Username    string
	UserProfile *UserProfile
	Text        string
	ThreadTS    string
	ReplyCount  int
	Reactions   []Reaction
	Files       []File
}

// OutgoingMessage is a message posted to a channel on behalf of a client.
type OutgoingMessage struct {
	ThreadID string
	Text     string
	Username string
	IconURL  string
}

// Push is the payload delivered to a connection for an inbound chat message.
type Push struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
