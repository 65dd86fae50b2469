package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"boxshop-api/internal/clock"
	"boxshop-api/internal/display"
	"boxshop-api/internal/model"
	"boxshop-api/internal/notify"
	"boxshop-api/internal/repository"
	"boxshop-api/pkg/uid"
)

const defaultNotifyTimeout = 10 * time.Second

// DisplayRefresher keeps the external stock message in sync.
type DisplayRefresher interface {
	Trigger()
	RefreshNow() error
}

// ShopConfig holds the shop's fixed catalogue and limits.
type ShopConfig struct {
	Categories    model.CategorySet
	Policy        model.QuotaPolicy
	MaxPerRequest int
}

// ShopService validates and commits purchases, restocks, and admin actions
// against the ledger.
type ShopService struct {
	repo     repository.LedgerRepository
	limiter  *RateLimiter
	clock    clock.Clock
	cfg      ShopConfig
	locks    *keyedMutex
	display  DisplayRefresher
	notifier notify.Notifier

	notifyTimeout time.Duration
	background    sync.WaitGroup
}

// ShopOption configures a ShopService.
type ShopOption func(*ShopService)

// WithNotifier sets the admin order-log notifier.
func WithNotifier(n notify.Notifier) ShopOption {
	return func(s *ShopService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithNotifyTimeout bounds one order notification.
func WithNotifyTimeout(d time.Duration) ShopOption {
	return func(s *ShopService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewShopService creates a shop over repo.
func NewShopService(repo repository.LedgerRepository, clk clock.Clock, cfg ShopConfig, opts ...ShopOption) *ShopService {
	s := &ShopService{
		repo:          repo,
		limiter:       NewRateLimiter(repo, cfg.Policy, cfg.Categories),
		clock:         clk,
		cfg:           cfg,
		locks:         newKeyedMutex(),
		notifier:      notify.Nop{},
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDisplay sets the display refresher. The synchronizer renders through
// the shop, so it is attached after construction.
func (s *ShopService) SetDisplay(d DisplayRefresher) {
	s.display = d
}

// Init seeds zero stock rows for the configured categories.
func (s *ShopService) Init(ctx context.Context) error {
	if err := s.repo.SeedCategories(ctx, s.cfg.Categories); err != nil {
		return storageErr("seed categories", err)
	}
	return nil
}

// Categories returns the configured categories.
func (s *ShopService) Categories() model.CategorySet {
	return s.cfg.Categories
}

// Limiter returns the shop's rate limiter.
func (s *ShopService) Limiter() *RateLimiter {
	return s.limiter
}

// Purchase runs one purchase request end to end. Rejections come back as an
// outcome; an error means storage failed and nothing was committed.
func (s *ShopService) Purchase(ctx context.Context, actor string, category model.Category, quantity int) (model.PurchaseOutcome, error) {
	if actor == "" {
		return model.Rejected(model.ReasonInvalidRequest, "actor is required"), nil
	}
	if !s.cfg.Categories.Contains(category) {
		return model.Rejected(model.ReasonInvalidRequest, fmt.Sprintf("invalid box type %q", category)), nil
	}
	if quantity < 1 || quantity > s.cfg.MaxPerRequest {
		return model.Rejected(model.ReasonInvalidRequest,
			fmt.Sprintf("you can only buy between 1 and %d boxes at a time", s.cfg.MaxPerRequest)), nil
	}

	open, err := s.IsOpen(ctx)
	if err != nil {
		return model.PurchaseOutcome{}, err
	}
	if !open {
		return model.Rejected(model.ReasonShopClosed, "the shop is currently closed"), nil
	}

	// Quota check and commit are serialized per (actor, category).
	unlock := s.locks.Lock(actor + "\x00" + string(category))
	defer unlock()

	now := s.clock.Now()
	var outcome model.PurchaseOutcome

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		remaining, err := s.limiter.RemainingQuota(txCtx, actor, category, now)
		if err != nil {
			return err
		}
		if remaining < quantity {
			cooldown, err := s.limiter.CooldownRemaining(txCtx, actor, category, now)
			if err != nil {
				return err
			}
			outcome = model.Rejected(model.ReasonQuotaExceeded,
				fmt.Sprintf("you can only buy %d more %s boxes in the next %s", remaining, category, s.cfg.Policy.Window))
			outcome.Remaining = remaining
			outcome.RetryAfter = cooldown
			return nil
		}

		ok, err := s.repo.TryDecrement(txCtx, category, quantity)
		if err != nil {
			return err
		}
		if !ok {
			outcome = model.Rejected(model.ReasonOutOfStock, "not enough stock")
			return nil
		}

		ev := model.PurchaseEvent{
			ID:        uid.New(),
			Actor:     actor,
			Category:  category,
			Quantity:  quantity,
			Timestamp: now,
		}
		if err := s.repo.AppendPurchaseEvent(txCtx, ev); err != nil {
			return err
		}
		outcome = model.Accepted(ev, remaining-quantity)
		return nil
	})
	if err != nil {
		return model.PurchaseOutcome{}, storageErr("purchase", err)
	}

	if outcome.Accepted {
		log.Printf("[ShopService] %s bought %dx %s", actor, quantity, category)
		s.afterPurchase(*outcome.Event)
	}
	return outcome, nil
}

// afterPurchase fires the best-effort side effects of an accepted purchase.
func (s *ShopService) afterPurchase(ev model.PurchaseEvent) {
	s.refreshDisplay()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.PurchaseAccepted(ctx, ev); err != nil {
			log.Printf("[ShopService] Failed to send order notification for %s: %v", ev.ID, err)
		}
	}()
}

func (s *ShopService) refreshDisplay() {
	if s.display != nil {
		s.display.Trigger()
	}
}

// Restock adds amount units of category and returns the new quantity.
func (s *ShopService) Restock(ctx context.Context, category model.Category, amount int) (int, error) {
	if !s.cfg.Categories.Contains(category) {
		return 0, fmt.Errorf("%w: invalid box type %q", model.ErrInvalidRequest, category)
	}
	if amount < 1 {
		return 0, fmt.Errorf("%w: amount must be positive", model.ErrInvalidRequest)
	}

	if err := s.repo.Increment(ctx, category, amount); err != nil {
		return 0, storageErr("restock", err)
	}
	qty, err := s.repo.GetQuantity(ctx, category)
	if err != nil {
		return 0, storageErr("restock", err)
	}

	log.Printf("[ShopService] Restocked %dx %s (now %d)", amount, category, qty)
	s.refreshDisplay()
	return qty, nil
}

// GetQuantity returns on-hand stock for one category.
func (s *ShopService) GetQuantity(ctx context.Context, category model.Category) (int, error) {
	if !s.cfg.Categories.Contains(category) {
		return 0, fmt.Errorf("%w: invalid box type %q", model.ErrInvalidRequest, category)
	}
	qty, err := s.repo.GetQuantity(ctx, category)
	if err != nil {
		return 0, storageErr("get quantity", err)
	}
	return qty, nil
}

// GetAllStock returns stock for every configured category in configured order.
func (s *ShopService) GetAllStock(ctx context.Context) ([]model.StockRecord, error) {
	rows, err := s.repo.GetAllStock(ctx)
	if err != nil {
		return nil, storageErr("get stock", err)
	}

	byCategory := make(map[model.Category]int, len(rows))
	for _, r := range rows {
		byCategory[r.Category] = r.Quantity
	}
	out := make([]model.StockRecord, len(s.cfg.Categories))
	for i, c := range s.cfg.Categories {
		out[i] = model.StockRecord{Category: c, Quantity: byCategory[c]}
	}
	return out, nil
}

// RenderStock renders the stock summary shown in the display channel.
func (s *ShopService) RenderStock(ctx context.Context) (string, error) {
	stock, err := s.GetAllStock(ctx)
	if err != nil {
		return "", err
	}
	return display.RenderStock(stock), nil
}

// GetQuotaSnapshot reports the actor's quota state per category.
func (s *ShopService) GetQuotaSnapshot(ctx context.Context, actor string) (model.QuotaSnapshot, error) {
	if actor == "" {
		return model.QuotaSnapshot{}, fmt.Errorf("%w: actor is required", model.ErrInvalidRequest)
	}
	snap, err := s.limiter.QuotaSnapshot(ctx, actor, s.clock.Now())
	if err != nil {
		return model.QuotaSnapshot{}, storageErr("quota snapshot", err)
	}
	return snap, nil
}

// IsOpen reports whether purchases are allowed. An unset gate is closed.
func (s *ShopService) IsOpen(ctx context.Context) (bool, error) {
	v, ok, err := s.repo.GetMeta(ctx, repository.MetaShopOpen)
	if err != nil {
		return false, storageErr("get gate", err)
	}
	if !ok {
		return false, nil
	}
	open, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[ShopService] Unreadable %s value %q, treating as closed", repository.MetaShopOpen, v)
		return false, nil
	}
	return open, nil
}

// SetOpen opens or closes the shop.
func (s *ShopService) SetOpen(ctx context.Context, open bool) error {
	if err := s.repo.SetMeta(ctx, repository.MetaShopOpen, strconv.FormatBool(open)); err != nil {
		return storageErr("set gate", err)
	}
	log.Printf("[ShopService] Shop is now open=%t", open)
	return nil
}

// ResetCooldowns deletes the actor's purchase events, or everyone's when
// actor is empty. Stock is untouched.
func (s *ShopService) ResetCooldowns(ctx context.Context, actor string) (int64, error) {
	n, err := s.repo.DeletePurchaseEvents(ctx, actor)
	if err != nil {
		return 0, storageErr("reset cooldowns", err)
	}
	if actor == "" {
		log.Printf("[ShopService] Reset all cooldowns (%d events)", n)
	} else {
		log.Printf("[ShopService] Reset cooldowns for %s (%d events)", actor, n)
	}
	return n, nil
}

// ClearOrders wipes the admin order log.
func (s *ShopService) ClearOrders(ctx context.Context) (int, error) {
	return s.notifier.ClearOrders(ctx)
}

// RefreshDisplay resyncs the stock message synchronously.
func (s *ShopService) RefreshDisplay() error {
	if s.display == nil {
		return nil
	}
	return s.display.RefreshNow()
}

// Stats returns ledger statistics.
func (s *ShopService) Stats(ctx context.Context) (*model.LedgerStats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	return stats, nil
}

// Close waits for pending order notifications.
func (s *ShopService) Close() {
	s.background.Wait()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorageUnavailable, op, err)
}
