package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"dice-gift-bot/models"
	"dice-gift-bot/services"
	"dice-gift-bot/storage"

	tele "gopkg.in/telebot.v3"
)

const (
	defaultThrows = 5
	maxThrows     = 10
)

// Bot is the chat transport. It decodes user actions into service
// calls and renders outcomes; every invariant lives below it.
type Bot struct {
	bot      *tele.Bot
	sessions *services.SessionService
	ledger   *services.LedgerService
	referral *services.ReferralService
	payments *services.PaymentService
	stats    *services.StatsService
	adminID  int64
}

func NewBot(
	token string,
	adminID int64,
	sessions *services.SessionService,
	ledger *services.LedgerService,
	referral *services.ReferralService,
	payments *services.PaymentService,
	stats *services.StatsService,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      bot,
		sessions: sessions,
		ledger:   ledger,
		referral: referral,
		payments: payments,
		stats:    stats,
		adminID:  adminID,
	}

	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/throw", b.handleThrow)
	b.bot.Handle("/premium", b.handlePremium)
	b.bot.Handle("/free", b.handleFree)
	b.bot.Handle("/balance", b.handleAdmin)
	b.bot.Handle("/setbalance", b.handleAdmin)
	b.bot.Handle("/stats", b.handleAdmin)
	b.bot.Handle("/ban", b.handleAdmin)
	b.bot.Handle("/unban", b.handleAdmin)
	b.bot.Handle("/pool", b.handleAdmin)

	b.bot.Handle(tele.OnCheckout, b.handlePreCheckout)
	b.bot.Handle(tele.OnPayment, b.handleSuccessfulPayment)
}

// StartPolling blocks until ctx is cancelled.
func (b *Bot) StartPolling(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.bot.Start()
}

// Vendor returns the gift catalog/delivery client sharing this bot's
// API credentials, for in-process worker setups.
func (b *Bot) Vendor() *GiftVendorClient {
	return &GiftVendorClient{bot: b.bot}
}

func (b *Bot) handleStart(c tele.Context) error {
	user := c.Sender()
	if _, err := b.ledger.EnsureAccount(context.Background(), user.ID); err != nil {
		log.Printf("❌ [BOT] ensure account %d: %v", user.ID, err)
		return c.Send("Something went wrong, try again later.")
	}

	payload := c.Message().Payload
	if strings.HasPrefix(payload, "ref_") {
		inviterID, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
		if err == nil {
			created, err := b.referral.RegisterVisit(context.Background(), user.ID, inviterID)
			if err != nil {
				log.Printf("❌ [BOT] register referral %d←%d: %v", inviterID, user.ID, err)
			} else if created {
				b.notify(inviterID, "👥 Your invite link brought a new player!")
			}
		}
	}

	return c.Send("🎲 Roll the dice, hit every throw, win a gift!\n\n" +
		"/throw — play for stars\n" +
		"/premium — higher stakes, better gift\n" +
		"/free — one free round per hour")
}

func (b *Bot) handleThrow(c tele.Context) error {
	return b.play(c, models.TierOrdinary)
}

func (b *Bot) handlePremium(c tele.Context) error {
	return b.play(c, models.TierPremium)
}

func (b *Bot) handleFree(c tele.Context) error {
	return b.play(c, models.TierFree)
}

func (b *Bot) play(c tele.Context, tier models.Tier) error {
	ctx := context.Background()
	userID := c.Sender().ID
	chat := c.Chat()

	banned, err := b.ledger.IsBanned(ctx, userID)
	if err != nil {
		log.Printf("❌ [BOT] ban check %d: %v", userID, err)
	}
	if banned {
		return c.Send("🚫 You are not allowed to play.")
	}

	throws := parseThrows(c.Message().Payload)
	req := services.SessionRequest{
		ChatID: chat.ID,
		UserID: userID,
		Throws: throws,
		Tier:   tier,
	}

	result, err := b.sessions.Begin(ctx, req, b.emitter(chat))
	return b.renderOutcome(c, req, result, err)
}

// renderOutcome maps session results and errors to chat replies.
func (b *Bot) renderOutcome(c tele.Context, req services.SessionRequest, result *services.SessionResult, err error) error {
	var cooldown *services.CooldownActiveError
	switch {
	case errors.Is(err, services.ErrBusy):
		return c.Send("⏳ A round is already running here, wait for it to finish.")
	case errors.As(err, &cooldown):
		return c.Send(fmt.Sprintf("🕐 Free round available in %s.", cooldown.Remaining.Round(time.Second)))
	case errors.Is(err, storage.ErrInsufficientBalance):
		return b.offerPayment(c, req)
	case err != nil:
		log.Printf("❌ [BOT] session for %d failed: %v", req.UserID, err)
		return c.Send("Something went wrong, try again later.")
	}

	if len(result.Rolls) == 0 {
		return c.Send("😕 Nothing could be sent, the round counts as a loss. You were not charged extra.")
	}
	if result.Win {
		return c.Send(fmt.Sprintf("🏆 All %d throws hit! Your %d⭐ gift is on the way.",
			len(result.Rolls), req.Tier.RewardStars()))
	}

	hits := 0
	for _, roll := range result.Rolls {
		if roll.Hit {
			hits++
		}
	}
	return c.Send(fmt.Sprintf("💔 %d of %d throws hit. Better luck next time!", hits, len(result.Rolls)))
}

// offerPayment builds the payment-request token for a session the
// ledger could not cover and hands the user a stars invoice over the
// shortfall.
func (b *Bot) offerPayment(c tele.Context, req services.SessionRequest) error {
	ctx := context.Background()
	account, err := b.ledger.GetAccount(ctx, req.UserID)
	if err != nil {
		log.Printf("❌ [BOT] account lookup %d: %v", req.UserID, err)
		return c.Send("Something went wrong, try again later.")
	}

	cost := req.Tier.UnitCost() * int64(req.Throws)
	shortfall := cost - account.Balance
	token, err := b.payments.NewToken(req.UserID, req.Throws, req.Tier)
	if err != nil {
		log.Printf("❌ [BOT] token for %d: %v", req.UserID, err)
		return c.Send("Something went wrong, try again later.")
	}

	invoice := tele.Invoice{
		Title:       "Dice round",
		Description: fmt.Sprintf("%d throws, %s tier", req.Throws, req.Tier),
		Payload:     token,
		Currency:    "XTR", // Telegram Stars
		Prices: []tele.Price{
			{Label: "Stars", Amount: int(shortfall)},
		},
	}

	link, err := b.bot.CreateInvoiceLink(invoice)
	if err != nil {
		log.Printf("❌ [BOT] invoice link for %d: %v", req.UserID, err)
		return c.Send("Could not create the payment link, try again later.")
	}

	return c.Send(fmt.Sprintf("💰 Not enough stars (%d needed). Pay the difference and the round starts automatically:\n%s",
		shortfall, link))
}

func (b *Bot) handlePreCheckout(c tele.Context) error {
	// Accept all pre-checkout queries
	return c.Accept()
}

const (
	resumeAttempts = 5
	resumeBackoff  = 3 * time.Second
)

// handleSuccessfulPayment resumes the session that was deferred for
// insufficient balance. The token is single-use and is burned only once
// the chat lock is held, so a Busy rejection keeps it alive for the
// next attempt. If the chat never frees up the paid stars are credited
// to the balance instead, never lost.
func (b *Bot) handleSuccessfulPayment(c tele.Context) error {
	payment := c.Message().Payment
	if payment == nil {
		return nil
	}

	ctx := context.Background()
	req, err := b.payments.Decode(payment.Payload)
	if err != nil {
		log.Printf("❌ [BOT] bad payment payload %q: %v", payment.Payload, err)
		return nil
	}

	if _, err := b.ledger.EnsureAccount(ctx, req.UserID); err != nil {
		log.Printf("❌ [BOT] ensure account %d: %v", req.UserID, err)
		return c.Send("Payment received, but something went wrong. Contact support.")
	}

	paid := int64(payment.Total)
	log.Printf("💳 [BOT] payment confirmed for %d (%d⭐), resuming %d-throw %s session",
		req.UserID, paid, req.Throws, req.Tier)

	session := services.SessionRequest{
		ChatID:    c.Chat().ID,
		UserID:    req.UserID,
		Throws:    req.Throws,
		Tier:      req.Tier,
		PaidStars: paid,
		// The shortfall was paid out-of-band: burn the token, consume
		// the virtual balance it topped up, count the real spend.
		Prepare: func(ctx context.Context) error {
			if _, err := b.payments.Consume(ctx, payment.Payload); err != nil {
				return err
			}
			if err := b.ledger.SetBalance(ctx, req.UserID, 0); err != nil {
				log.Printf("❌ [BOT] reset balance %d: %v", req.UserID, err)
			}
			if err := b.ledger.RecordSpent(ctx, req.UserID, paid); err != nil {
				log.Printf("❌ [BOT] record spent %d: %v", req.UserID, err)
			}
			return nil
		},
	}

	for attempt := 0; attempt < resumeAttempts; attempt++ {
		result, err := b.sessions.Begin(ctx, session, b.emitter(c.Chat()))
		if errors.Is(err, services.ErrBusy) {
			time.Sleep(resumeBackoff)
			continue
		}
		if errors.Is(err, storage.ErrTokenUsed) {
			log.Printf("⚠️ [BOT] duplicate payment confirmation ignored: %s", payment.Payload)
			return c.Send("This payment was already processed.")
		}
		return b.renderOutcome(c, session, result, err)
	}

	return b.bankPayment(ctx, c, req, paid)
}

// bankPayment is the last resort when the chat stayed busy through
// every resume attempt: the token is burned and the paid stars become
// balance, so the user can start the round themselves.
func (b *Bot) bankPayment(ctx context.Context, c tele.Context, req *services.PaymentRequest, paid int64) error {
	if err := b.payments.Store.ConsumeToken(ctx, req.Nonce, req.UserID); err != nil {
		if errors.Is(err, storage.ErrTokenUsed) {
			return c.Send("This payment was already processed.")
		}
		log.Printf("❌ [BOT] bank payment for %d: %v", req.UserID, err)
		return c.Send("Payment received, but something went wrong. Contact support.")
	}
	if _, err := b.ledger.AdjustBalance(ctx, req.UserID, paid); err != nil {
		log.Printf("❌ [BOT] credit banked payment for %d: %v", req.UserID, err)
		return c.Send("Payment received, but something went wrong. Contact support.")
	}
	log.Printf("💳 [BOT] chat %d stayed busy, banked %d⭐ for %d", c.Chat().ID, paid, req.UserID)
	return c.Send(fmt.Sprintf("💰 The chat was busy, so your %d⭐ were added to your balance. Start the round with /throw when ready.", paid))
}

// emitter sends one dice message to the chat and reports its value.
func (b *Bot) emitter(chat *tele.Chat) services.DiceEmitter {
	return func(_ context.Context) (int, error) {
		msg, err := b.bot.Send(chat, tele.Cube)
		if err != nil {
			return 0, err
		}
		if msg.Dice == nil {
			return 0, fmt.Errorf("no dice in response")
		}
		return msg.Dice.Value, nil
	}
}

func (b *Bot) notify(userID int64, text string) {
	if _, err := b.bot.Send(&tele.User{ID: userID}, text); err != nil {
		log.Printf("⚠️ [BOT] notify %d: %v", userID, err)
	}
}

func parseThrows(payload string) int {
	throws, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil || throws < 1 {
		return defaultThrows
	}
	if throws > maxThrows {
		return maxThrows
	}
	return throws
}
