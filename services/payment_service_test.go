package services

import (
	"context"
	"testing"

	"dice-gift-bot/models"
	"dice-gift-bot/storage"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	payments := NewPaymentService(storage.NewMemStore())

	token, err := payments.NewToken(42, 5, models.TierOrdinary)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	req, err := payments.Decode(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), req.UserID)
	require.Equal(t, 5, req.Throws)
	require.Equal(t, models.TierOrdinary, req.Tier)
	require.NotEmpty(t, req.Nonce)
}

func TestTokensAreUniquePerRequest(t *testing.T) {
	payments := NewPaymentService(storage.NewMemStore())

	first, err := payments.NewToken(42, 5, models.TierOrdinary)
	require.NoError(t, err)
	second, err := payments.NewToken(42, 5, models.TierOrdinary)
	require.NoError(t, err)
	require.NotEqual(t, first, second, "identical requests still get distinct nonces")
}

func TestConsumeRejectsReplay(t *testing.T) {
	payments := NewPaymentService(storage.NewMemStore())
	ctx := context.Background()

	token, err := payments.NewToken(42, 5, models.TierPremium)
	require.NoError(t, err)

	req, err := payments.Consume(ctx, token)
	require.NoError(t, err)
	require.Equal(t, models.TierPremium, req.Tier)

	_, err = payments.Consume(ctx, token)
	require.ErrorIs(t, err, storage.ErrTokenUsed)
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	payments := NewPaymentService(storage.NewMemStore())

	cases := []string{
		"",
		"not base64 at all!!!",
		"e30",                // {}: no nonce, no throws
		"bm90IGpzb24gZGF0YQ", // valid base64, not JSON
	}
	for _, payload := range cases {
		_, err := payments.Decode(payload)
		require.Error(t, err, "payload %q must be rejected", payload)
	}
}
