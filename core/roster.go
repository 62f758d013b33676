package core

// LocalUserID is the id of the participant driving the local input path.
const LocalUserID = "local-user"

// LocalUser is the human participant of the session.
var LocalUser = User{
	ID:        LocalUserID,
	Name:      "You",
	AvatarRef: "/avatar-person-neutral-professional.jpg",
	Color:     "#3b82f6",
}

// AgentUsers is the fixed roster of simulated remote participants.
var AgentUsers = []User{
	{ID: "bot-aisha", Name: "Aisha", AvatarRef: "/avatar-woman-dark-hair-professional.jpg", Color: "#10b981", IsAgent: true},
	{ID: "bot-ravi", Name: "Ravi", AvatarRef: "/avatar-man-beard-professional.jpg", Color: "#f59e0b", IsAgent: true},
	{ID: "bot-chen", Name: "Chen", AvatarRef: "/avatar-man-glasses-asian-professional.jpg", Color: "#8b5cf6", IsAgent: true},
	{ID: "bot-sofia", Name: "Sofia", AvatarRef: "/avatar-woman-blonde-professional.jpg", Color: "#ec4899", IsAgent: true},
}

// DefaultRoster returns the local user followed by the first n agents. A
// negative or oversized n yields every agent.
func DefaultRoster(n int) []User {
	if n < 0 || n > len(AgentUsers) {
		n = len(AgentUsers)
	}
	users := make([]User, 0, n+1)
	users = append(users, LocalUser)
	users = append(users, AgentUsers[:n]...)
	return users
}

// InitialBlocks returns the document every session starts with.
func InitialBlocks() []DocBlock {
	return []DocBlock{
		{ID: "block-1", Content: "Welcome to the collaborative document editor.", Version: 1, Type: BlockHeading},
		{ID: "block-2", Content: "Start typing to see realtime collaboration in action.", Version: 1, Type: BlockParagraph},
		{ID: "block-3", Content: "Watch as other users join and make changes.", Version: 1, Type: BlockParagraph},
		{ID: "block-4", Content: "const greeting = 'Hello World!'", Version: 1, Type: BlockCode},
	}
}
