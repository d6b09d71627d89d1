package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store/memory"
)

var errInjected = errors.New("injected storage failure")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestItem(t *testing.T, inventory *InventoryService, stock int) int64 {
	t.Helper()
	item, err := inventory.CreateMenuItem(context.Background(), models.MenuItemRequest{
		Name:       "Test Item",
		Price:      decimal.NewFromInt(10),
		StockCount: stock,
	})
	require.NoError(t, err)
	return item.ID
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Store

	mu            sync.Mutex
	failSetStock  map[int64]bool
	failOrderList bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:        memory.NewStore(),
		failSetStock: make(map[int64]bool),
	}
}

func (f *faultyStore) FailSetStock(menuItemID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSetStock[menuItemID] = true
}

func (f *faultyStore) FailOrderList(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOrderList = fail
}

func (f *faultyStore) shouldFailSetStock(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failSetStock[id]
}

func (f *faultyStore) Orders() store.OrderRepository {
	return &faultyOrders{OrderRepository: f.Store.Orders(), s: f}
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, s: f})
	})
}

type faultyTx struct {
	store.Tx
	s *faultyStore
}

func (t *faultyTx) SetStock(ctx context.Context, id int64, stock int) error {
	if t.s.shouldFailSetStock(id) {
		return errInjected
	}
	return t.Tx.SetStock(ctx, id, stock)
}

type faultyOrders struct {
	store.OrderRepository
	s *faultyStore
}

func (o *faultyOrders) GetByStatusCreatedBefore(ctx context.Context, status models.OrderStatus, before time.Time) ([]models.Order, error) {
	o.s.mu.Lock()
	fail := o.s.failOrderList
	o.s.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return o.OrderRepository.GetByStatusCreatedBefore(ctx, status, before)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []models.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OrderEvent(nil), p.events...)
}
