package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/models"
)

var (
	ErrNotFound        = errors.New("download token not found")
	ErrExpired         = errors.New("download token expired")
	ErrAlreadyRedeemed = errors.New("download token already redeemed")

	// ErrDuplicate is returned only after repeated generation
	// collisions, which in practice means the random source is broken.
	ErrDuplicate = errors.New("download token collision")
)

// createAttempts bounds retries on a unique-constraint collision.
const createAttempts = 5

// DefaultTTL is the validity window for a freshly minted token.
const DefaultTTL = time.Hour

// Store persists download tokens and owns their state transitions.
// The only mutation a token ever sees is redeemed: false -> true, and
// the conditional update in Redeem guarantees exactly one caller wins.
type Store struct {
	db    *gorm.DB
	clock Clock
	ttl   time.Duration
}

func NewStore(db *gorm.DB, clock Clock, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, clock: clock, ttl: ttl}
}

// Create mints a token for the given file and requester. Uniqueness of
// the token string is enforced by the primary key; a collision is
// treated as a retryable generation failure.
func (s *Store) Create(fileID, userID uuid.UUID) (*models.DownloadToken, error) {
	now := s.clock.Now()
	for i := 0; i < createAttempts; i++ {
		rec := &models.DownloadToken{
			Token:     Generate(),
			FileID:    fileID,
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		err := s.db.Create(rec).Error
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, fmt.Errorf("persist download token: %w", err)
	}
	return nil, ErrDuplicate
}

// Redeem consumes a token. Expiry and prior redemption are checked
// before the mark, so a rejected attempt never flips the flag. The
// flip itself is a single conditional UPDATE: under concurrent
// redemption of the same token exactly one caller sees rows affected.
func (s *Store) Redeem(tok string) (*models.DownloadToken, error) {
	var rec models.DownloadToken
	if err := s.db.First(&rec, "token = ?", tok).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load download token: %w", err)
	}

	if rec.IsExpired(s.clock.Now()) {
		return nil, ErrExpired
	}
	if rec.Redeemed {
		return nil, ErrAlreadyRedeemed
	}

	res := s.db.Model(&models.DownloadToken{}).
		Where("token = ? AND redeemed = ?", tok, false).
		Update("redeemed", true)
	if res.Error != nil {
		return nil, fmt.Errorf("mark download token redeemed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent redeemer.
		return nil, ErrAlreadyRedeemed
	}

	rec.Redeemed = true
	return &rec, nil
}

// PurgeExpired deletes every token past its expiry and reports how many
// were removed. Purging is storage hygiene only: redemption checks
// expiry on its own, so running this zero times or concurrently with
// redemptions changes nothing.
func (s *Store) PurgeExpired() (int64, error) {
	res := s.db.Where("expires_at < ?", s.clock.Now()).Delete(&models.DownloadToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired download tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
