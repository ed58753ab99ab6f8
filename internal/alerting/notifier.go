package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const embedColor = 0x845199

// Alert carries everything needed to notify one subscriber about a trigger.
type Alert struct {
	SubscriberID string
	Price        decimal.Decimal
	Threshold    decimal.Decimal
	PriceLink    string
	Footer       string
}

// Notifier delivers an alert to a subscriber. Delivery is best effort; a
// failure never affects committed subscription state.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// DiscordNotifier delivers alerts as direct messages via the Discord REST API.
type DiscordNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewDiscordNotifier constructs a Discord DM notifier.
func NewDiscordNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}

	return &DiscordNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Notify opens (or reuses) the subscriber's DM channel and posts the alert
// embed with the daily/weekly history buttons.
func (n *DiscordNotifier) Notify(ctx context.Context, alert Alert) error {
	channelID, err := n.openDMChannel(ctx, alert.SubscriberID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}

	if err := n.sendMessage(ctx, channelID, alert); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}

	n.logger.Info().
		Str("subscriber", alert.SubscriberID).
		Str("price", alert.Price.String()).
		Str("threshold", alert.Threshold.String()).
		Msg("alert delivered")
	return nil
}

func (n *DiscordNotifier) openDMChannel(ctx context.Context, subscriberID string) (string, error) {
	payload := map[string]string{"recipient_id": subscriberID}

	var res struct {
		ID string `json:"id"`
	}
	if err := n.postJSON(ctx, n.baseURL+"/users/@me/channels", payload, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", fmt.Errorf("discord returned empty channel id")
	}
	return res.ID, nil
}

func (n *DiscordNotifier) sendMessage(ctx context.Context, channelID string, alert Alert) error {
	embed := map[string]interface{}{
		"color": embedColor,
		"title": "Your price alert has been triggered!",
		"url":   alert.PriceLink,
		"description": fmt.Sprintf(
			"Your price threshold: **$%s**\nCurrent gold price: **$%s**",
			alert.Threshold.String(), alert.Price.String(),
		),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if alert.Footer != "" {
		embed["footer"] = map[string]string{"text": alert.Footer}
	}

	payload := map[string]interface{}{
		"embeds": []interface{}{embed},
		"components": []interface{}{
			map[string]interface{}{
				"type": 1,
				"components": []interface{}{
					button("day", "Daily History", 1, "📈"),
					button("week", "Weekly History", 4, "📉"),
				},
			},
		},
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", n.baseURL, channelID)
	return n.postJSON(ctx, endpoint, payload, nil)
}

func button(customID, label string, style int, emoji string) map[string]interface{} {
	return map[string]interface{}{
		"type":      2,
		"custom_id": customID,
		"label":     label,
		"style":     style,
		"emoji":     map[string]string{"name": emoji},
	}
}

func (n *DiscordNotifier) postJSON(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord response status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode discord response: %w", err)
		}
	}
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
