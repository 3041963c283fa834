package lottery

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// MinWithdrawalCents is the smallest balance that can be paid out.
	MinWithdrawalCents = 100

	defaultOpTimeout     = 5 * time.Second
	defaultOracleTimeout = 3 * time.Second
)

// Service is the ledger and settlement engine. Every public operation runs as
// a single transaction; check-then-act sequences take row locks so concurrent
// callers serialize instead of losing updates.
type Service struct {
	db         *gorm.DB
	rdb        *redis.Client
	membership MembershipChecker
	device     DeviceOracle
	codes      CodeSource
	admins     map[int64]bool
	log        *zap.SugaredLogger

	opTimeout     time.Duration
	oracleTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(db *gorm.DB, rdb *redis.Client, membership MembershipChecker, device DeviceOracle, codes CodeSource, admins map[int64]bool, log *zap.SugaredLogger) *Service {
	if admins == nil {
		admins = make(map[int64]bool)
	}
	return &Service{
		db:            db,
		rdb:           rdb,
		membership:    membership,
		device:        device,
		codes:         codes,
		admins:        admins,
		log:           log,
		opTimeout:     defaultOpTimeout,
		oracleTimeout: defaultOracleTimeout,
		rng:           rand.New(rand.NewSource(cryptoSeed())),
	}
}

// SetMembership injects the channel membership checker. Used at startup when
// the checker is built around the transport the service is wired into.
func (s *Service) SetMembership(m MembershipChecker) {
	s.membership = m
}

// inTx runs fn as one transaction bounded by the operation timeout. A
// transient store failure is retried once, then surfaced as ErrStoreUnavailable.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(fn)
	if isTransient(err) {
		s.log.Warnw("retrying transaction after transient failure", "error", err)
		err = s.db.WithContext(ctx).Transaction(fn)
	}
	if isTransient(err) {
		return ErrStoreUnavailable
	}
	return err
}

// isTransient covers timeouts, lost uniqueness races (two transactions
// inserting the same round number or code) and deadlock or serialization
// aborts. One retry re-reads fresh state and resolves all of them.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, code := range []string{"SQLSTATE 23505", "SQLSTATE 40001", "SQLSTATE 40P01"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func (s *Service) perm(n int) []int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Perm(n)
}

// checkMember calls the remote membership check with a bounded timeout.
// Timeouts and transport errors count as "not a member", never a silent pass.
func (s *Service) checkMember(ctx context.Context, telegramID int64) bool {
	if s.membership == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()
	ok, err := s.membership.IsMember(ctx, telegramID)
	if err != nil {
		s.log.Warnw("membership check failed", "telegram_id", telegramID, "error", err)
		return false
	}
	return ok
}

// checkSameDevice calls the device oracle with a bounded timeout. A failure
// denies the current attempt but is never treated as a duplicate: only an
// affirmative answer may put an account into the terminal rejected state.
func (s *Service) checkSameDevice(ctx context.Context, telegramID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()
	same, err := s.device.SameDevice(ctx, telegramID)
	if err != nil {
		s.log.Warnw("device check failed", "telegram_id", telegramID, "error", err)
		return false, err
	}
	return same, nil
}
