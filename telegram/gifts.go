package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"dice-gift-bot/workers"

	tele "gopkg.in/telebot.v3"
)

// GiftVendorClient implements workers.GiftVendor against the Bot API
// gift catalog. Lookup is by exact star price; the catalog shape varies
// across API revisions, so unknown entries are skipped, not fatal.
type GiftVendorClient struct {
	bot *tele.Bot
}

// NewGiftVendorClient builds a vendor with its own API session, for the
// standalone worker process.
func NewGiftVendorClient(token string) (*GiftVendorClient, error) {
	// No poller: this client only issues API calls.
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to create gift client: %w", err)
	}
	return &GiftVendorClient{bot: bot}, nil
}

type rawGift struct {
	ID        string `json:"id"`
	StarCount int64  `json:"star_count"`
}

// FindByPrice scans the available-gifts catalog for a unit costing
// exactly stars. Returns nil when nothing matches.
func (v *GiftVendorClient) FindByPrice(ctx context.Context, stars int64) (*workers.Gift, error) {
	data, err := v.bot.Raw("getAvailableGifts", map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("getAvailableGifts: %w", err)
	}

	var resp struct {
		Result struct {
			Gifts []rawGift `json:"gifts"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode gift catalog: %w", err)
	}

	for _, g := range resp.Result.Gifts {
		if g.StarCount == stars {
			log.Printf("🎁 [GIFTS] found catalog gift %s (%d⭐)", g.ID, g.StarCount)
			return &workers.Gift{ID: g.ID, Stars: g.StarCount}, nil
		}
	}
	return nil, nil
}

// Send buys and delivers the gift to the user, paid from the bot's
// star balance.
func (v *GiftVendorClient) Send(ctx context.Context, userID int64, gift *workers.Gift) error {
	params := map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"gift_id": gift.ID,
	}
	if _, err := v.bot.Raw("sendGift", params); err != nil {
		return fmt.Errorf("sendGift: %w", err)
	}
	return nil
}
