// Package notify announces arena events to operator channels. Announcements
// fan out to every configured sender (Telegram, Discord) and are filtered by
// event type so a channel only carries the alerts its operators asked for.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// Event types accepted by the events filter.
const (
	EventMatchCompleted   = "match_completed"
	EventMatchFailed      = "match_failed"
	EventArchiveCompleted = "archive_completed"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers an announcement with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches announcements to one or more Senders. It maintains a
// set of allowed event types; announcements for events outside the set are
// dropped. An empty set allows every event.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders. Only
// events whose type appears in the events slice are forwarded; an empty
// slice forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured. Announcing through a
// disabled notifier is a no-op, so callers can skip the formatting work.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// AnnounceMatch reports a finished match: winner, standings and timing.
func (n *Notifier) AnnounceMatch(ctx context.Context, match *domain.MatchResult) error {
	if !n.Enabled() {
		return nil
	}

	title := "Match drawn"
	if winner := match.Winner(); winner != "" {
		title = fmt.Sprintf("Match won by %s", winner)
	}

	var b strings.Builder
	for _, p := range match.Participants {
		fmt.Fprintf(&b, "%d. %s: %d pts (%d wins, %d draws, avg edge %s)\n",
			p.Placement, p.Strategy, p.Points, p.Wins, p.Draws, p.AvgEdge.StringFixed(4))
	}
	fmt.Fprintf(&b, "%d simulations, base seed %d, ran %s",
		match.Sims, match.BaseSeed,
		match.FinishedAt.Sub(match.StartedAt).Round(time.Millisecond))

	return n.notify(ctx, EventMatchCompleted, title, b.String())
}

// AnnounceMatchFailure reports a match that did not finish.
func (n *Notifier) AnnounceMatchFailure(ctx context.Context, matchID uuid.UUID, runErr error) error {
	if !n.Enabled() {
		return nil
	}
	return n.notify(ctx, EventMatchFailed,
		"Match failed",
		fmt.Sprintf("match %s: %v", matchID, runErr),
	)
}

// AnnounceArchive reports a completed archive pass.
func (n *Notifier) AnnounceArchive(ctx context.Context, archived int64, cutoff time.Time) error {
	if !n.Enabled() {
		return nil
	}
	return n.notify(ctx, EventArchiveCompleted,
		"Archive pass complete",
		fmt.Sprintf("%d matches older than %s exported and pruned",
			archived, cutoff.Format(time.RFC3339)),
	)
}

// notify applies the event filter and dispatches to every sender.
func (n *Notifier) notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders. Errors from individual senders are
// collected and returned combined; a single sender failure does not prevent
// delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "announcement sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
