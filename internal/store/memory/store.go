// Package memory is an in-process implementation of store.Store. Row locks
// come from a per-key lock table, so transactions on different menu items
// or orders never wait on each other.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	items       map[int64]models.MenuItem
	orders      map[int64]models.Order
	nextItemID  int64
	nextOrderID int64

	locks *lockTable
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		items:  make(map[int64]models.MenuItem),
		orders: make(map[int64]models.Order),
		locks:  newLockTable(),
		now:    time.Now,
	}
}

func (s *Store) Menu() store.MenuRepository {
	return &menuRepository{s: s}
}

func (s *Store) Orders() store.OrderRepository {
	return &orderRepository{s: s}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{
		s:      s,
		held:   make(map[string]func()),
		items:  make(map[int64]models.MenuItem),
		orders: make(map[int64]models.Order),
	}
	defer t.unlockAll()

	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func menuKey(id int64) string  { return fmt.Sprintf("menu:%d", id) }
func orderKey(id int64) string { return fmt.Sprintf("order:%d", id) }

// tx buffers its writes and applies them on commit while still holding
// its row locks.
type tx struct {
	s      *Store
	held   map[string]func()
	items  map[int64]models.MenuItem
	orders map[int64]models.Order
}

func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	unlock, err := t.s.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = unlock
	return nil
}

func (t *tx) unlockAll() {
	for _, unlock := range t.held {
		unlock()
	}
	t.held = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, item := range t.items {
		t.s.items[id] = item
	}
	for id, order := range t.orders {
		t.s.orders[id] = order
	}
}

func (t *tx) LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	if err := t.lock(ctx, menuKey(id)); err != nil {
		return nil, err
	}
	if item, ok := t.items[id]; ok {
		return &item, nil
	}

	t.s.mu.RLock()
	item, ok := t.s.items[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (t *tx) SetStock(ctx context.Context, id int64, stock int) error {
	if _, ok := t.held[menuKey(id)]; !ok {
		return fmt.Errorf("menu item %d is not locked by this transaction", id)
	}
	if stock < 0 {
		return fmt.Errorf("stock for menu item %d cannot be negative", id)
	}

	item, ok := t.items[id]
	if !ok {
		t.s.mu.RLock()
		item, ok = t.s.items[id]
		t.s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("menu item %d not found", id)
		}
	}

	item.StockCount = stock
	item.UpdatedAt = t.s.now()
	t.items[id] = item
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	if err := t.lock(ctx, orderKey(id)); err != nil {
		return nil, err
	}
	if order, ok := t.orders[id]; ok {
		return &order, nil
	}

	t.s.mu.RLock()
	order, ok := t.s.orders[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (t *tx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.s.mu.Lock()
	t.s.nextOrderID++
	id := t.s.nextOrderID
	t.s.mu.Unlock()

	if err := t.lock(ctx, orderKey(id)); err != nil {
		return err
	}
	order.ID = id
	t.orders[id] = *order
	return nil
}

func (t *tx) SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error {
	if _, ok := t.held[orderKey(id)]; !ok {
		return fmt.Errorf("order %d is not locked by this transaction", id)
	}

	order, ok := t.orders[id]
	if !ok {
		t.s.mu.RLock()
		order, ok = t.s.orders[id]
		t.s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("order %d not found", id)
		}
	}

	order.Status = status
	order.UpdatedAt = at
	t.orders[id] = order
	return nil
}

type menuRepository struct {
	s *Store
}

func (r *menuRepository) collect(keep func(models.MenuItem) bool) []models.MenuItem {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]models.MenuItem, 0, len(r.s.items))
	for _, item := range r.s.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b models.MenuItem) int { return cmp.Compare(a.ID, b.ID) })
	return items
}

func (r *menuRepository) GetAll(ctx context.Context) ([]models.MenuItem, error) {
	return r.collect(func(models.MenuItem) bool { return true }), nil
}

func (r *menuRepository) GetByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *menuRepository) FindByStockGreaterThan(ctx context.Context, n int) ([]models.MenuItem, error) {
	return r.collect(func(item models.MenuItem) bool { return item.StockCount > n }), nil
}

func (r *menuRepository) SearchByName(ctx context.Context, substr string) ([]models.MenuItem, error) {
	needle := strings.ToLower(substr)
	return r.collect(func(item models.MenuItem) bool {
		return strings.Contains(strings.ToLower(item.Name), needle)
	}), nil
}

func (r *menuRepository) Create(ctx context.Context, item *models.MenuItem) error {
	if item.StockCount < 0 || item.Price.IsNegative() {
		return fmt.Errorf("failed to create menu item: stock and price must not be negative")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextItemID++
	now := r.s.now()
	item.ID = r.s.nextItemID
	item.CreatedAt = now
	item.UpdatedAt = now
	r.s.items[item.ID] = *item
	return nil
}

// Update takes the row lock so it serialises with in-flight reservations.
func (r *menuRepository) Update(ctx context.Context, item *models.MenuItem) (bool, error) {
	if item.StockCount < 0 || item.Price.IsNegative() {
		return false, fmt.Errorf("failed to update menu item: stock and price must not be negative")
	}

	unlock, err := r.s.locks.lock(ctx, menuKey(item.ID))
	if err != nil {
		return false, err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.items[item.ID]
	if !ok {
		return false, nil
	}
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = r.s.now()
	r.s.items[item.ID] = *item
	return true, nil
}

func (r *menuRepository) Delete(ctx context.Context, id int64) (bool, error) {
	unlock, err := r.s.locks.lock(ctx, menuKey(id))
	if err != nil {
		return false, err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return false, nil
	}
	delete(r.s.items, id)
	return true, nil
}

type orderRepository struct {
	s *Store
}

// newestFirst orders by CreatedAt descending and falls back to id, which
// follows insertion order.
func newestFirst(a, b models.Order) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func oldestFirst(a, b models.Order) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *orderRepository) collect(keep func(models.Order) bool, order func(a, b models.Order) int) []models.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orders := make([]models.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	slices.SortFunc(orders, order)
	return orders
}

func (r *orderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.collect(func(models.Order) bool { return true }, newestFirst), nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (r *orderRepository) GetByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return r.collect(func(o models.Order) bool { return o.Status == status }, newestFirst), nil
}

func (r *orderRepository) GetByStatusCreatedBefore(ctx context.Context, status models.OrderStatus, before time.Time) ([]models.Order, error) {
	return r.collect(func(o models.Order) bool {
		return o.Status == status && o.CreatedAt.Before(before)
	}, oldestFirst), nil
}
