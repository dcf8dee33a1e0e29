package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/threat"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to http.DefaultClient
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendEnforcement(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, out *Outcome) error {
	body := slackBody("⚠️ Linkguard Enforcement ⚠️\n", msg, worst)
	body += fmt.Sprintf("Action: `%s` (warnings: %d)\n", out.Action, out.Warnings)
	if out.MuteUntil != nil {
		body += fmt.Sprintf("Muted until: %s\n", out.MuteUntil.UTC().Format("2006-01-02 15:04 MST"))
	}
	return n.sendSlackMsg(ctx, body)
}

func (n *SlackNotifier) SendFailure(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, reason string) error {
	body := slackBody("🚨 Linkguard Failure 🚨\n", msg, worst)
	body += reason + "\n"
	return n.sendSlackMsg(ctx, body)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/

	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(header string, msg *event.MessageEvent, worst *threat.Assessment) string {
	body := header
	body += fmt.Sprintf("User `%s` in channel `%s` (message `%s`)\n", msg.UserID, msg.ChannelID, msg.MessageID)
	if worst != nil {
		body += fmt.Sprintf("Link: `%s`\n", truncate(worst.URL, 80))
		body += fmt.Sprintf("Tier: `%s` (score %.2f)\n", worst.Tier, worst.Score)
		if reasons := assessmentReasons(worst, 5); len(reasons) > 0 {
			body += "Reasons: " + strings.Join(reasons, "; ") + "\n"
		}
	}
	return body
}
