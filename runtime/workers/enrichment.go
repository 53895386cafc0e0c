package workers

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/mentions"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.Worker = (*EnrichmentWorker)(nil)

// IPresenceReader is the slice of the presence aggregator the enrichment
// stage needs: who is online for ONLINE_MEMBERS broadcast targeting.
type IPresenceReader interface {
	Online(userID domain.UserID) bool
}

// EnrichmentWorker sits between the room workers and fan-out. Every
// posted message gets its mentions resolved and its language detected
// before anything reaches a subscriber or a sink.
type EnrichmentWorker struct {
	members  contract.IMembershipLookup
	presence IPresenceReader
	rawChan  chan event.DomainEvent
	events   chan event.DomainEvent
	log      *slog.Logger
}

func NewEnrichmentWorker(
	members contract.IMembershipLookup,
	presence IPresenceReader,
	rawChan, events chan event.DomainEvent,
	log *slog.Logger) *EnrichmentWorker {
	return &EnrichmentWorker{
		members:  members,
		presence: presence,
		rawChan:  rawChan,
		events:   events,
		log:      log,
	}
}

func (w *EnrichmentWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.rawChan:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			switch evt := e.(type) {
			case event.MessagePosted:
				enriched, resolved := w.enrich(evt)
				if err := w.forward(ctx, enriched); err != nil {
					return err
				}
				if resolved != nil {
					if err := w.forward(ctx, *resolved); err != nil {
						return err
					}
				}
			default:
				// Everything else passes through untouched
				if err := w.forward(ctx, e); err != nil {
					return err
				}
			}
		}
	}
}

func (w *EnrichmentWorker) forward(ctx context.Context, evt event.DomainEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.events <- evt:
		return nil
	}
}

// enrich resolves mentions against the room's current membership and
// detects the message language. A failing membership lookup degrades to
// plain text rather than blocking the pipeline.
func (w *EnrichmentWorker) enrich(evt event.MessagePosted) (event.MessageEnriched, *event.MentionsResolved) {
	members, err := w.members.GetMembers(evt.Room)
	if err != nil {
		w.log.Debug("Membership lookup failed, mentions degrade to plain text",
			"room", evt.Room, "error", err)
		members = nil
	}

	info := whatlanggo.Detect(evt.Content)
	resolved := mentions.Resolve(evt.Content, members)

	enriched := event.MessageEnriched{
		ID:       evt.ID,
		Room:     evt.Room,
		Author:   evt.Author,
		Content:  evt.Content,
		Lang:     info.Lang.Iso6391(),
		Mentions: resolved,
		ParentID: evt.ParentID,
		At:       evt.At,
	}
	if len(resolved) == 0 {
		return enriched, nil
	}

	return enriched, &event.MentionsResolved{
		ID:        uuid.New(),
		Room:      evt.Room,
		MessageID: evt.ID,
		Mentions:  resolved,
		Targets:   w.targets(resolved, members, evt.Author),
		At:        time.Now().UTC(),
	}
}

// targets expands resolved mentions into one recipient list:
// ALL_MEMBERS is every room member, ONLINE_MEMBERS every member holding
// a live connection, a USER mention its single target. The author never
// notifies themselves and nobody is notified twice.
func (w *EnrichmentWorker) targets(
	resolved []domain.Mention,
	members []domain.Participant,
	author domain.UserID) []domain.UserID {
	targetSet := make(map[domain.UserID]struct{})
	for _, mention := range resolved {
		switch mention.Kind {
		case domain.MentionUser:
			targetSet[mention.TargetUserID] = struct{}{}
		case domain.MentionBroadcast:
			for _, member := range members {
				if mention.Scope == domain.ScopeOnlineMembers && !w.presence.Online(member.ID) {
					continue
				}
				targetSet[member.ID] = struct{}{}
			}
		}
	}
	delete(targetSet, author)

	targets := lo.Keys(targetSet)
	// Stable payloads for downstream dedup and tests
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}
