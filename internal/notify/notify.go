// Package notify posts operator notifications to Slack when a task needs
// an approval or a request gets blocked. Fully optional: a nil Notifier
// is safe everywhere.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/bronhq/bron/internal/store"
)

// poster is the slack surface we need; *slack.Client satisfies it.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts to a single operator channel.
type Notifier struct {
	api     poster
	channel string
	log     *slog.Logger
}

// New creates a notifier. Returns nil when token or channel is unset, so
// callers can pass the result straight through.
func New(token, channel string, logger *slog.Logger) *Notifier {
	if token == "" || channel == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		api:     slack.New(token),
		channel: channel,
		log:     logger,
	}
}

// ApprovalRequested implements orchestrator.Notifier.
func (n *Notifier) ApprovalRequested(ctx context.Context, task *store.Task, recipe *store.UIRecipe) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(":raised_hand: Approval pending for task *%s* (%s)\n> %s",
		task.Title, task.ID, recipe.Description)
	n.post(ctx, text)
}

// RequestBlocked implements orchestrator.Notifier.
func (n *Notifier) RequestBlocked(ctx context.Context, agentID, reason string) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(":no_entry: Blocked request on agent `%s`: %s", agentID, reason)
	n.post(ctx, text)
}

func (n *Notifier) post(ctx context.Context, text string) {
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		n.log.Warn("failed to post slack notification", "error", err)
	}
}
