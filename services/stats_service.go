package services

import (
	"context"
	"errors"
	"log"

	"dice-gift-bot/storage"

	"github.com/gofiber/fiber/v2"
)

// AdminCommand is the closed set of administrative operations. Chat
// text and HTTP requests are decoded into one of these variants exactly
// once at the boundary; nothing downstream re-parses strings.
type AdminCommand interface {
	isAdminCommand()
}

type ShowBalanceCommand struct{ UserID int64 }
type SetBalanceCommand struct {
	UserID int64
	Value  int64
}
type StatsCommand struct{}
type BanCommand struct {
	UserID int64
	Banned bool
}
type TopUpPoolCommand struct{ Amount int64 }

func (ShowBalanceCommand) isAdminCommand() {}
func (SetBalanceCommand) isAdminCommand()  {}
func (StatsCommand) isAdminCommand()       {}
func (BanCommand) isAdminCommand()         {}
func (TopUpPoolCommand) isAdminCommand()   {}

// AdminReport is the data behind an admin reply; presentation renders
// whichever fields the command populated. Zero balances and an empty
// pool are real values and stay in the JSON.
type AdminReport struct {
	UserID   int64 `json:"user_id,omitempty"`
	Balance  int64 `json:"balance"`
	Accounts int64 `json:"accounts"`
	Pool     int64 `json:"pool"`
	Banned   bool  `json:"banned"`
}

// StatsService carries the administrative surface: ledger corrections,
// aggregate stats, bans, and pool top-ups.
type StatsService struct {
	Store  storage.Store
	Ledger *LedgerService
	Queue  *QueueService
}

func NewStatsService(store storage.Store, ledger *LedgerService, queue *QueueService) *StatsService {
	return &StatsService{Store: store, Ledger: ledger, Queue: queue}
}

// Execute dispatches one decoded admin command.
func (s *StatsService) Execute(ctx context.Context, cmd AdminCommand) (*AdminReport, error) {
	switch c := cmd.(type) {
	case ShowBalanceCommand:
		account, err := s.Ledger.GetAccount(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		return &AdminReport{UserID: c.UserID, Balance: account.Balance, Banned: account.Banned}, nil

	case SetBalanceCommand:
		if _, err := s.Ledger.EnsureAccount(ctx, c.UserID); err != nil {
			return nil, err
		}
		if err := s.Ledger.SetBalance(ctx, c.UserID, c.Value); err != nil {
			return nil, err
		}
		log.Printf("🛠 [ADMIN] balance of %d set to %d", c.UserID, c.Value)
		return &AdminReport{UserID: c.UserID, Balance: c.Value}, nil

	case StatsCommand:
		accounts, err := s.Store.CountAccounts(ctx)
		if err != nil {
			return nil, err
		}
		pool, err := s.Queue.Pool(ctx)
		if err != nil {
			return nil, err
		}
		return &AdminReport{Accounts: accounts, Pool: pool}, nil

	case BanCommand:
		if err := s.Ledger.SetBanned(ctx, c.UserID, c.Banned); err != nil {
			return nil, err
		}
		log.Printf("🛠 [ADMIN] user %d banned=%v", c.UserID, c.Banned)
		return &AdminReport{UserID: c.UserID, Banned: c.Banned}, nil

	case TopUpPoolCommand:
		pool, err := s.Queue.TopUpPool(ctx, c.Amount)
		if err != nil {
			return nil, err
		}
		log.Printf("🛠 [ADMIN] pool adjusted by %d (now %d)", c.Amount, pool)
		return &AdminReport{Pool: pool}, nil
	}
	return nil, errors.New("unknown admin command")
}

// --- Fiber handlers (admin API) ---

func (s *StatsService) GetStats(c *fiber.Ctx) error {
	report, err := s.Execute(c.Context(), StatsCommand{})
	if err != nil {
		log.Printf("DB Error fetching stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stats"})
	}
	return c.JSON(fiber.Map{"accounts": report.Accounts, "pool": report.Pool})
}

func (s *StatsService) GetAccountBalance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}
	report, err := s.Execute(c.Context(), ShowBalanceCommand{UserID: int64(id)})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(report)
}

func (s *StatsService) SetAccountBalance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}
	var req struct {
		Balance int64 `json:"balance"`
	}
	if err := c.BodyParser(&req); err != nil || req.Balance < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	report, err := s.Execute(c.Context(), SetBalanceCommand{UserID: int64(id), Value: req.Balance})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to set balance"})
	}
	return c.JSON(report)
}

func (s *StatsService) SetAccountBan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}
	var req struct {
		Banned bool `json:"banned"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	report, err := s.Execute(c.Context(), BanCommand{UserID: int64(id), Banned: req.Banned})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update ban"})
	}
	return c.JSON(report)
}

func (s *StatsService) TopUpPool(c *fiber.Ctx) error {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.Amount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	report, err := s.Execute(c.Context(), TopUpPoolCommand{Amount: req.Amount})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to adjust pool"})
	}
	return c.JSON(report)
}
