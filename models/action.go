package models

// ActionKind selects how the next free-form message from a user is
// interpreted. It is a single slot per user: selecting a menu option
// overwrites the previous value, and handling a message consumes it.
type ActionKind string

const (
	ActionNone         ActionKind = ""
	ActionConversation ActionKind = "conversation"
	ActionGirlProfile  ActionKind = "girl_profile"
	ActionMyProfile    ActionKind = "my_profile"
	ActionTopics       ActionKind = "topics"
)
