package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"dice-gift-bot/models"
	"dice-gift-bot/storage"

	"github.com/google/uuid"
)

// PaymentRequest is what gets folded into the opaque invoice payload.
// The nonce makes every token unique and single-use.
type PaymentRequest struct {
	UserID int64       `json:"user_id"`
	Throws int         `json:"throws"`
	Tier   models.Tier `json:"tier"`
	Nonce  string      `json:"nonce"`
}

// PaymentService correlates deferred sessions with out-of-band
// payments. A session that could not be debited is encoded into a
// token; the confirmation hands the token back and the exact session is
// resumed. Tokens are single-use: replayed confirmations are rejected.
type PaymentService struct {
	Store storage.Store

	// NewNonce is swappable for tests; defaults to uuid.NewString.
	NewNonce func() string
}

func NewPaymentService(store storage.Store) *PaymentService {
	return &PaymentService{Store: store, NewNonce: uuid.NewString}
}

// NewToken encodes the deferred session into an opaque payload that
// survives the pre-checkout/confirmation round trip unchanged.
func (s *PaymentService) NewToken(userID int64, throws int, tier models.Tier) (string, error) {
	req := PaymentRequest{
		UserID: userID,
		Throws: throws,
		Tier:   tier,
		Nonce:  s.NewNonce(),
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode payment token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode unpacks a payload without consuming it.
func (s *PaymentService) Decode(payload string) (*PaymentRequest, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payment token: %w", err)
	}
	var req PaymentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode payment token: %w", err)
	}
	if req.Nonce == "" || req.Throws < 1 || !req.Tier.Valid() {
		return nil, fmt.Errorf("malformed payment token")
	}
	return &req, nil
}

// Consume decodes the payload and burns its nonce. A second call with
// the same payload returns storage.ErrTokenUsed.
func (s *PaymentService) Consume(ctx context.Context, payload string) (*PaymentRequest, error) {
	req, err := s.Decode(payload)
	if err != nil {
		return nil, err
	}
	if err := s.Store.ConsumeToken(ctx, req.Nonce, req.UserID); err != nil {
		return nil, err
	}
	return req, nil
}
