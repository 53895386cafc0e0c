// Package mentions derives mention spans from message text at send time.
// Resolution is a pure function of (text, members): nothing here is
// persisted and nothing here sends notifications.
package mentions

import (
	"sort"
	"unicode"

	"collab-lab/domain"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Reserved broadcast tokens. They take precedence over a member who is
// literally named "channel", "here" or "online".
var broadcastTokens = []struct {
	token []rune
	scope domain.BroadcastScope
}{
	{[]rune("@channel"), domain.ScopeAllMembers},
	{[]rune("@here"), domain.ScopeOnlineMembers},
	{[]rune("@online"), domain.ScopeOnlineMembers},
}

// Resolve scans text for broadcast tokens and literal @<displayName>
// occurrences of the supplied members, returning non-overlapping spans
// ordered by start offset. An empty member list resolves to no mentions
// at all: the text degrades gracefully to plain content.
//
// Overlap policy: spans are ranked by start ascending, then span length
// descending, then broadcast before user. The first-placed span wins and
// any later span starting inside it is discarded, so the longest match
// at a position always binds.
func Resolve(text string, members []domain.Participant) []domain.Mention {
	if len(members) == 0 || text == "" {
		return nil
	}
	runes := []rune(text)

	spans := scanBroadcast(runes)
	spans = append(spans, scanMembers(runes, members, spans)...)
	if len(spans) == 0 {
		return nil
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		if spans[i].Len() != spans[j].Len() {
			return spans[i].Len() > spans[j].Len()
		}
		return spans[i].Kind == domain.MentionBroadcast && spans[j].Kind == domain.MentionUser
	})

	resolved := spans[:0]
	prevEnd := 0
	for _, span := range spans {
		if span.Start < prevEnd {
			continue
		}
		resolved = append(resolved, span)
		prevEnd = span.End
	}
	return resolved
}

// scanBroadcast records every reserved token occurrence. A token only
// counts when it is not immediately followed by a word rune, so
// "@channels" stays plain text.
func scanBroadcast(runes []rune) []domain.Mention {
	var spans []domain.Mention
	for _, candidate := range broadcastTokens {
		for start := 0; start+len(candidate.token) <= len(runes); start++ {
			if !matchesAt(runes, candidate.token, start) {
				continue
			}
			end := start + len(candidate.token)
			if end < len(runes) && isWordRune(runes[end]) {
				continue
			}
			spans = append(spans, domain.Mention{
				Start: start,
				End:   end,
				Kind:  domain.MentionBroadcast,
				Scope: candidate.scope,
			})
		}
	}
	return spans
}

// scanMembers matches @<displayName> patterns with one Aho-Corasick pass,
// the same multi-pattern rune scan the moderation layer uses. Building
// the automaton per call keeps resolution a pure function of its inputs.
func scanMembers(runes []rune, members []domain.Participant, broadcast []domain.Mention) []domain.Mention {
	patterns := make([][]rune, 0, len(members))
	owners := make(map[string]domain.UserID, len(members))
	for _, member := range members {
		if member.DisplayName == "" {
			continue
		}
		pattern := "@" + member.DisplayName
		if _, taken := owners[pattern]; taken {
			// Duplicate display names bind to the first member supplied.
			continue
		}
		owners[pattern] = member.ID
		patterns = append(patterns, []rune(pattern))
	}
	if len(patterns) == 0 {
		return nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil
	}

	var spans []domain.Mention
	for _, term := range machine.MultiPatternSearch(runes, false) {
		end := term.Pos + len(term.Word)
		// Same trailing boundary as the broadcast tokens: "@Alicexyz"
		// never binds a member named Alice.
		if end < len(runes) && isWordRune(runes[end]) {
			continue
		}
		span := domain.Mention{
			Start:        term.Pos,
			End:          end,
			Kind:         domain.MentionUser,
			TargetUserID: owners[string(term.Word)],
		}
		if overlapsAny(span, broadcast) {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

func matchesAt(runes, token []rune, start int) bool {
	for i, r := range token {
		if runes[start+i] != r {
			return false
		}
	}
	return true
}

func overlapsAny(span domain.Mention, others []domain.Mention) bool {
	for _, other := range others {
		if span.Overlaps(other) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
