package telegram

import (
	"testing"

	"dice-gift-bot/services"

	"github.com/stretchr/testify/require"
)

func TestParseAdminCommand(t *testing.T) {
	cases := []struct {
		text string
		want services.AdminCommand
	}{
		{"/stats", services.StatsCommand{}},
		{"/stats@dicegiftbot", services.StatsCommand{}},
		{"/balance 42", services.ShowBalanceCommand{UserID: 42}},
		{"/setbalance 42 100", services.SetBalanceCommand{UserID: 42, Value: 100}},
		{"/ban 42", services.BanCommand{UserID: 42, Banned: true}},
		{"/unban 42", services.BanCommand{UserID: 42, Banned: false}},
		{"/pool 500", services.TopUpPoolCommand{Amount: 500}},
		{"/pool -50", services.TopUpPoolCommand{Amount: -50}},
	}
	for _, tc := range cases {
		cmd, err := ParseAdminCommand(tc.text)
		require.NoError(t, err, "text %q", tc.text)
		require.Equal(t, tc.want, cmd, "text %q", tc.text)
	}
}

func TestParseAdminCommandUsageErrors(t *testing.T) {
	for _, text := range []string{
		"/balance",
		"/balance abc",
		"/setbalance 42",
		"/setbalance 42 -5",
		"/ban",
		"/pool",
		"/pool 0",
		"/pool many",
	} {
		_, err := ParseAdminCommand(text)
		require.Error(t, err, "text %q", text)
		require.NotErrorIs(t, err, errNotAdminCommand, "text %q should be a usage error", text)
	}
}

func TestParseAdminCommandIgnoresOtherText(t *testing.T) {
	for _, text := range []string{"", "   ", "/throw 5", "hello there"} {
		_, err := ParseAdminCommand(text)
		require.ErrorIs(t, err, errNotAdminCommand, "text %q", text)
	}
}
