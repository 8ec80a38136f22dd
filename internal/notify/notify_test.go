package notify

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/bronhq/bron/internal/store"
)

type capturePoster struct {
	channels []string
	count    int
}

func (c *capturePoster) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	c.channels = append(c.channels, channelID)
	c.count++
	return "", "", nil
}

func TestNewDisabledWithoutConfig(t *testing.T) {
	if n := New("", "#ops", nil); n != nil {
		t.Error("expected nil notifier without token")
	}
	if n := New("xoxb-token", "", nil); n != nil {
		t.Error("expected nil notifier without channel")
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.ApprovalRequested(context.Background(), &store.Task{}, &store.UIRecipe{})
	n.RequestBlocked(context.Background(), "a1", "because")
}

func TestNotificationsPostToChannel(t *testing.T) {
	p := &capturePoster{}
	n := &Notifier{api: p, channel: "#ops", log: slog.Default()}

	n.ApprovalRequested(context.Background(), &store.Task{ID: "t1", Title: "Send Email"}, &store.UIRecipe{Description: "needs a go-ahead"})
	n.RequestBlocked(context.Background(), "a1", "blocked pattern")

	if p.count != 2 {
		t.Fatalf("posted %d messages, want 2", p.count)
	}
	for _, ch := range p.channels {
		if !strings.HasPrefix(ch, "#ops") {
			t.Errorf("channel = %q", ch)
		}
	}
}
