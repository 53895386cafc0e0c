package domain

type MentionKind string

const (
	MentionUser      MentionKind = "USER"
	MentionBroadcast MentionKind = "BROADCAST"
)

type BroadcastScope string

const (
	ScopeAllMembers    BroadcastScope = "ALL_MEMBERS"
	ScopeOnlineMembers BroadcastScope = "ONLINE_MEMBERS"
)

// Mention is derived from message text at send time, never persisted.
// Start and End are rune offsets, end exclusive. TargetUserID is set for
// USER mentions, Scope for BROADCAST ones.
type Mention struct {
	Start        int
	End          int
	Kind         MentionKind
	TargetUserID UserID
	Scope        BroadcastScope
}

// Len returns the span length in runes.
func (m Mention) Len() int {
	return m.End - m.Start
}

// Overlaps reports whether two spans share at least one rune.
func (m Mention) Overlaps(other Mention) bool {
	return m.Start < other.End && other.Start < m.End
}
