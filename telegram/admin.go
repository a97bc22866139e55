package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dice-gift-bot/services"
	"dice-gift-bot/storage"

	tele "gopkg.in/telebot.v3"
)

// errNotAdminCommand marks text that is no admin command at all.
var errNotAdminCommand = errors.New("not an admin command")

// ParseAdminCommand decodes one chat line into a closed command value.
// This is the only place admin text is ever parsed; everything past it
// works with typed variants.
func ParseAdminCommand(text string) (services.AdminCommand, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, errNotAdminCommand
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at != -1 {
		name = name[:at]
	}
	args := fields[1:]

	switch name {
	case "stats":
		return services.StatsCommand{}, nil
	case "balance":
		id, err := argInt64(args, 0)
		if err != nil {
			return nil, fmt.Errorf("usage: /balance <user_id>")
		}
		return services.ShowBalanceCommand{UserID: id}, nil
	case "setbalance":
		id, err := argInt64(args, 0)
		value, err2 := argInt64(args, 1)
		if err != nil || err2 != nil || value < 0 {
			return nil, fmt.Errorf("usage: /setbalance <user_id> <stars>")
		}
		return services.SetBalanceCommand{UserID: id, Value: value}, nil
	case "ban", "unban":
		id, err := argInt64(args, 0)
		if err != nil {
			return nil, fmt.Errorf("usage: /%s <user_id>", name)
		}
		return services.BanCommand{UserID: id, Banned: name == "ban"}, nil
	case "pool":
		amount, err := argInt64(args, 0)
		if err != nil || amount == 0 {
			return nil, fmt.Errorf("usage: /pool <stars>")
		}
		return services.TopUpPoolCommand{Amount: amount}, nil
	}
	return nil, errNotAdminCommand
}

func argInt64(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, errors.New("missing argument")
	}
	return strconv.ParseInt(args[i], 10, 64)
}

func (b *Bot) handleAdmin(c tele.Context) error {
	if c.Sender().ID != b.adminID {
		return nil
	}

	cmd, err := ParseAdminCommand(c.Text())
	if err != nil {
		if errors.Is(err, errNotAdminCommand) {
			return nil
		}
		return c.Send(err.Error())
	}

	report, err := b.stats.Execute(context.Background(), cmd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Send("Account not found.")
		}
		return c.Send(fmt.Sprintf("Admin command failed: %v", err))
	}

	switch cmd.(type) {
	case services.StatsCommand:
		return c.Send(fmt.Sprintf("📊 Accounts: %d\n⭐ Pool: %d", report.Accounts, report.Pool))
	case services.ShowBalanceCommand:
		return c.Send(fmt.Sprintf("👤 %d — balance %d⭐ (banned: %v)", report.UserID, report.Balance, report.Banned))
	case services.SetBalanceCommand:
		return c.Send(fmt.Sprintf("👤 %d — balance set to %d⭐", report.UserID, report.Balance))
	case services.BanCommand:
		return c.Send(fmt.Sprintf("👤 %d — banned: %v", report.UserID, report.Banned))
	case services.TopUpPoolCommand:
		return c.Send(fmt.Sprintf("⭐ Pool now: %d", report.Pool))
	}
	return nil
}
