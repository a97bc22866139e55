package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dice-gift-bot/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of GORM (Postgres in production).
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates/updates all tables owned by the bot.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Account{},
		&models.Referral{},
		&models.GiftTask{},
		&models.PoolEntry{},
		&models.UsedPaymentToken{},
	)
}

// unavailable wraps backend failures so callers can detect degraded
// mode without matching on driver-specific errors.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// --- Accounts / ledger ---

func (s *GormStore) EnsureAccount(ctx context.Context, id int64) (*models.Account, error) {
	account := models.Account{ID: id}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
	if err != nil {
		return nil, unavailable(err)
	}
	return s.GetAccount(ctx, id)
}

func (s *GormStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := s.DB.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &account, nil
}

// AdjustBalance applies delta atomically and clamps the result at 0.
// Used for credits and admin corrections; debits that must fail closed
// go through DebitBalance instead.
func (s *GormStore) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	var balance int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).Where("id = ?", id).
			Update("balance", gorm.Expr(
				"CASE WHEN balance + ? > 0 THEN balance + ? ELSE 0 END", delta, delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.Account{}).Where("id = ?", id).
			Select("balance").Scan(&balance).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, unavailable(err)
	}
	return balance, nil
}

// DebitBalance subtracts amount only when the full amount is covered.
func (s *GormStore) DebitBalance(ctx context.Context, id, amount int64) error {
	res := s.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (s *GormStore) SetBalance(ctx context.Context, id, value int64) error {
	if value < 0 {
		value = 0
	}
	return s.updateAccount(ctx, id, map[string]interface{}{"balance": value})
}

func (s *GormStore) AddSpent(ctx context.Context, id, amount int64) error {
	return s.updateAccount(ctx, id, map[string]interface{}{
		"spent": gorm.Expr("spent + ?", amount),
	})
}

func (s *GormStore) AddEarned(ctx context.Context, id, amount int64) error {
	return s.updateAccount(ctx, id, map[string]interface{}{
		"earned": gorm.Expr("earned + ?", amount),
	})
}

func (s *GormStore) AddPlay(ctx context.Context, id int64) error {
	return s.updateAccount(ctx, id, map[string]interface{}{
		"plays": gorm.Expr("plays + ?", 1),
	})
}

func (s *GormStore) SetCooldown(ctx context.Context, id int64, until time.Time) error {
	return s.updateAccount(ctx, id, map[string]interface{}{"cooldown_until": until})
}

func (s *GormStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	return s.updateAccount(ctx, id, map[string]interface{}{"banned": banned})
}

func (s *GormStore) updateAccount(ctx context.Context, id int64, values map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Account{}).Count(&count).Error; err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// --- Referrals ---

// CreateReferral inserts the link unless one already exists for the
// referred account. Returns true when a new link was created.
func (s *GormStore) CreateReferral(ctx context.Context, referredID, inviterID int64) (bool, error) {
	referral := models.Referral{ReferredID: referredID, InviterID: inviterID}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&referral)
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) GetReferral(ctx context.Context, referredID int64) (*models.Referral, error) {
	var referral models.Referral
	err := s.DB.WithContext(ctx).First(&referral, "referred_id = ?", referredID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &referral, nil
}

// IncrementReferralPlays bumps the play counter unless the link is
// already rewarded or at the threshold, then returns the current link
// state. The counter never leaves 0..threshold.
func (s *GormStore) IncrementReferralPlays(ctx context.Context, referredID int64) (*models.Referral, error) {
	res := s.DB.WithContext(ctx).Model(&models.Referral{}).
		Where("referred_id = ? AND rewarded = ? AND plays < ?",
			referredID, false, models.ReferralThreshold).
		Update("plays", gorm.Expr("plays + ?", 1))
	if res.Error != nil {
		return nil, unavailable(res.Error)
	}
	return s.GetReferral(ctx, referredID)
}

// MarkReferralRewarded claims the Counting→Rewarded edge. The WHERE
// guard makes the claim exclusive: exactly one caller ever sees true.
func (s *GormStore) MarkReferralRewarded(ctx context.Context, referredID int64, threshold int) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Referral{}).
		Where("referred_id = ? AND plays >= ? AND rewarded = ?", referredID, threshold, false).
		Update("rewarded", true)
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// --- Gift queue ---

func (s *GormStore) EnqueueGiftTask(ctx context.Context, task *models.GiftTask) error {
	task.Status = models.GiftStatusPending
	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// ClaimGiftTasks marks up to batch pending rows processing and returns
// copies. The SKIP LOCKED clause lets any number of worker processes
// drain the same queue without handing a row to two of them.
func (s *GormStore) ClaimGiftTasks(ctx context.Context, batch int) ([]models.GiftTask, error) {
	var tasks []models.GiftTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.GiftStatusPending).
			Order("created_at").
			Limit(batch).
			Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(tasks))
		for i := range tasks {
			ids = append(ids, tasks[i].ID)
		}
		now := time.Now()
		if err := tx.Model(&models.GiftTask{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     models.GiftStatusProcessing,
				"claimed_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range tasks {
			tasks[i].Status = models.GiftStatusProcessing
			tasks[i].ClaimedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return tasks, nil
}

// MarkTaskSent finalizes a processing row. The status guard keeps the
// transition monotonic; a row that already reached a terminal state is
// left untouched and false is returned.
func (s *GormStore) MarkTaskSent(ctx context.Context, id uint) (bool, error) {
	return s.finishTask(ctx, id, models.GiftStatusSent)
}

func (s *GormStore) MarkTaskFailed(ctx context.Context, id uint) (bool, error) {
	return s.finishTask(ctx, id, models.GiftStatusFailed)
}

func (s *GormStore) finishTask(ctx context.Context, id uint, status models.GiftStatus) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.GiftTask{}).
		Where("id = ? AND status = ?", id, models.GiftStatusProcessing).
		Update("status", status)
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReclaimStuckTasks returns processing rows whose claim expired back to
// pending, so a crashed worker cannot strand its batch forever.
func (s *GormStore) ReclaimStuckTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.DB.WithContext(ctx).Model(&models.GiftTask{}).
		Where("status = ? AND claimed_at < ?", models.GiftStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     models.GiftStatusPending,
			"claimed_at": nil,
		})
	if res.Error != nil {
		return 0, unavailable(res.Error)
	}
	return res.RowsAffected, nil
}

// --- Shared pool ---

// AdjustPool applies delta to the named counter, creating it on first
// use. The result is clamped at 0, mirroring the original refund SQL.
func (s *GormStore) AdjustPool(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PoolEntry{}).Where("key = ?", key).
			Update("value", gorm.Expr(
				"CASE WHEN value + ? > 0 THEN value + ? ELSE 0 END", delta, delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			initial := delta
			if initial < 0 {
				initial = 0
			}
			if err := tx.Create(&models.PoolEntry{Key: key, Value: initial}).Error; err != nil {
				return err
			}
			value = initial
			return nil
		}
		return tx.Model(&models.PoolEntry{}).Where("key = ?", key).
			Select("value").Scan(&value).Error
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return value, nil
}

func (s *GormStore) GetPool(ctx context.Context, key string) (int64, error) {
	var entry models.PoolEntry
	err := s.DB.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return entry.Value, nil
}

// --- Payment tokens ---

// ConsumeToken records the nonce as used. A duplicate insert means the
// confirmation was replayed.
func (s *GormStore) ConsumeToken(ctx context.Context, nonce string, userID int64) error {
	token := models.UsedPaymentToken{Nonce: nonce, UserID: userID}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&token)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenUsed
	}
	return nil
}
