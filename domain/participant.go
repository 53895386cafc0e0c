package domain

type UserID string

// Participant is a room member as seen by the sync core: just enough
// identity to resolve mentions and render presence.
type Participant struct {
	ID          UserID
	DisplayName string
}
