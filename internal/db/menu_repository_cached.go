package db

import (
	"context"
	"fmt"
	"log"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
)

// Cache is the part of cache.RedisCache the menu decorator needs.
// SetIfGeneration must refuse the write once Invalidate has bumped the key
// past gen.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, value any) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// CachePattern matches every key written by CachedMenuRepository.
const CachePattern = "menu_item*"

// Cache key helpers
func menuItemKey(id int64) string {
	return fmt.Sprintf("menu_item:%d", id)
}

const (
	allMenuItemsKey       = "menu_items:all"
	availableMenuItemsKey = "menu_items:available"
)

// CachedMenuRepository reads menu items through Redis and invalidates on
// every write.
type CachedMenuRepository struct {
	repo  store.MenuRepository
	cache Cache
}

func NewCachedMenuRepository(repo store.MenuRepository, c Cache) *CachedMenuRepository {
	return &CachedMenuRepository{
		repo:  repo,
		cache: c,
	}
}

// fill loads a value and caches it under key unless load says not to, or
// key is invalidated while the load is in flight.
func fill[T any](ctx context.Context, c Cache, key string, load func() (T, bool, error)) (T, error) {
	gen, genErr := c.Generation(ctx, key)
	if genErr != nil {
		log.Printf("⚠️ Cache error: %v", genErr)
	}

	value, cacheable, err := load()
	if err != nil || genErr != nil || !cacheable {
		return value, err
	}

	stored, err := c.SetIfGeneration(ctx, key, gen, value)
	switch {
	case err != nil:
		log.Printf("⚠️ Failed to cache %s: %v", key, err)
	case !stored:
		log.Printf("🔄 Skipped caching %s: invalidated during load", key)
	}
	return value, nil
}

func (r *CachedMenuRepository) cachedList(ctx context.Context, key string, load func() ([]models.MenuItem, error)) ([]models.MenuItem, error) {
	// Try cache first
	var items []models.MenuItem
	err := r.cache.Get(ctx, key, &items)
	if err == nil {
		log.Printf("📦 Cache HIT: %s", key)
		return items, nil
	}
	if !cache.IsMiss(err) {
		log.Printf("⚠️ Cache error: %v", err)
	}

	// Cache miss - get from database
	log.Printf("💾 Cache MISS: %s - fetching from DB", key)
	return fill(ctx, r.cache, key, func() ([]models.MenuItem, bool, error) {
		items, err := load()
		return items, true, err
	})
}

// GetAll returns all menu items (with caching)
func (r *CachedMenuRepository) GetAll(ctx context.Context) ([]models.MenuItem, error) {
	return r.cachedList(ctx, allMenuItemsKey, func() ([]models.MenuItem, error) {
		return r.repo.GetAll(ctx)
	})
}

// FindByStockGreaterThan caches only the available-items query (n == 0).
func (r *CachedMenuRepository) FindByStockGreaterThan(ctx context.Context, n int) ([]models.MenuItem, error) {
	if n != 0 {
		return r.repo.FindByStockGreaterThan(ctx, n)
	}
	return r.cachedList(ctx, availableMenuItemsKey, func() ([]models.MenuItem, error) {
		return r.repo.FindByStockGreaterThan(ctx, 0)
	})
}

func (r *CachedMenuRepository) SearchByName(ctx context.Context, substr string) ([]models.MenuItem, error) {
	return r.repo.SearchByName(ctx, substr)
}

// GetByID returns a single menu item (with caching)
func (r *CachedMenuRepository) GetByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	cacheKey := menuItemKey(id)

	var item models.MenuItem
	err := r.cache.Get(ctx, cacheKey, &item)
	if err == nil {
		log.Printf("📦 Cache HIT: menu item %d", id)
		return &item, nil
	}
	if !cache.IsMiss(err) {
		log.Printf("⚠️ Cache error: %v", err)
	}

	log.Printf("💾 Cache MISS: menu item %d - fetching from DB", id)
	return fill(ctx, r.cache, cacheKey, func() (*models.MenuItem, bool, error) {
		m, err := r.repo.GetByID(ctx, id)
		return m, m != nil, err
	})
}

func (r *CachedMenuRepository) Create(ctx context.Context, item *models.MenuItem) error {
	if err := r.repo.Create(ctx, item); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedMenuRepository) Update(ctx context.Context, item *models.MenuItem) (bool, error) {
	ok, err := r.repo.Update(ctx, item)
	if err != nil || !ok {
		return ok, err
	}
	r.invalidate(ctx, item.ID)
	return true, nil
}

func (r *CachedMenuRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := r.repo.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	r.invalidate(ctx, id)
	return true, nil
}

// invalidate drops the list keys and the given items.
func (r *CachedMenuRepository) invalidate(ctx context.Context, ids ...int64) {
	keys := []string{allMenuItemsKey, availableMenuItemsKey}
	for _, id := range ids {
		keys = append(keys, menuItemKey(id))
	}
	if err := r.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("⚠️ Failed to invalidate cache: %v", err)
		return
	}
	log.Printf("🗑️ Cache invalidated: %v", keys)
}

// CachedStore puts CachedMenuRepository in front of another store.Store.
// Transactions never read the cache; the menu items whose stock a
// transaction changed are invalidated once it commits. A read that loaded
// the old stock before the commit then fails its generation check and
// leaves the cache empty.
type CachedStore struct {
	inner store.Store
	menu  *CachedMenuRepository
}

func NewCachedStore(inner store.Store, c Cache) *CachedStore {
	return &CachedStore{
		inner: inner,
		menu:  NewCachedMenuRepository(inner.Menu(), c),
	}
}

func (s *CachedStore) Menu() store.MenuRepository {
	return s.menu
}

func (s *CachedStore) Orders() store.OrderRepository {
	return s.inner.Orders()
}

func (s *CachedStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var touched []int64
	err := s.inner.InTx(ctx, func(tx store.Tx) error {
		return fn(&stockTrackingTx{Tx: tx, touched: &touched})
	})
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		s.menu.invalidate(context.WithoutCancel(ctx), touched...)
	}
	return nil
}

type stockTrackingTx struct {
	store.Tx
	touched *[]int64
}

func (t *stockTrackingTx) SetStock(ctx context.Context, id int64, stock int) error {
	if err := t.Tx.SetStock(ctx, id, stock); err != nil {
		return err
	}
	*t.touched = append(*t.touched, id)
	return nil
}
