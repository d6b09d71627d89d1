package db

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store/memory"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gens map[string]int64
	hits int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte), gens: make(map[string]int64)}
}

func (c *mapCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Generation(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key], nil
}

func (c *mapCache) SetIfGeneration(ctx context.Context, key string, gen int64, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false, nil
	}
	c.data[key] = raw
	return true, nil
}

func (c *mapCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.gens[k]++
		delete(c.data, k)
	}
	return nil
}

// slowFillCache holds the first cache fill until release is closed.
type slowFillCache struct {
	*mapCache
	once    sync.Once
	paused  chan struct{}
	release chan struct{}
}

func newSlowFillCache() *slowFillCache {
	return &slowFillCache{
		mapCache: newMapCache(),
		paused:   make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (c *slowFillCache) SetIfGeneration(ctx context.Context, key string, gen int64, value any) (bool, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.paused)
		<-c.release
	}
	return c.mapCache.SetIfGeneration(ctx, key, gen, value)
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func newCachedTestStore(t *testing.T) (*CachedStore, *mapCache, *models.MenuItem) {
	t.Helper()
	c := newMapCache()
	s := NewCachedStore(memory.NewStore(), c)
	item := &models.MenuItem{Name: "Vada Pav", Price: decimal.NewFromInt(25), StockCount: 3}
	require.NoError(t, s.Menu().Create(context.Background(), item))
	return s, c, item
}

func TestCachedGetByIDHitsCacheAfterFirstRead(t *testing.T) {
	ctx := context.Background()
	s, c, item := newCachedTestStore(t)

	first, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, c.has(menuItemKey(item.ID)))

	second, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.Price.Equal(second.Price))

	missing, err := s.Menu().GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCachedWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	s, c, item := newCachedTestStore(t)

	_, err := s.Menu().GetAll(ctx)
	require.NoError(t, err)
	_, err = s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, c.has(allMenuItemsKey))

	item.Name = "Misal Pav"
	ok, err := s.Menu().Update(ctx, item)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, c.has(allMenuItemsKey))
	assert.False(t, c.has(menuItemKey(item.ID)))

	got, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Misal Pav", got.Name)
}

func TestCachedStoreInvalidatesStockAfterCommit(t *testing.T) {
	ctx := context.Background()
	s, c, item := newCachedTestStore(t)

	available, err := s.Menu().FindByStockGreaterThan(ctx, 0)
	require.NoError(t, err)
	require.Len(t, available, 1)
	_, err = s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockMenuItem(ctx, item.ID)
		if err != nil {
			return err
		}
		return tx.SetStock(ctx, item.ID, locked.StockCount-3)
	})
	require.NoError(t, err)
	assert.False(t, c.has(availableMenuItemsKey))
	assert.False(t, c.has(menuItemKey(item.ID)))

	available, err = s.Menu().FindByStockGreaterThan(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestCachedStoreKeepsCacheOnRollback(t *testing.T) {
	ctx := context.Background()
	s, c, item := newCachedTestStore(t)

	_, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockMenuItem(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.SetStock(ctx, item.ID, 0); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, c.has(menuItemKey(item.ID)))

	got, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockCount)
}

func reserveOne(ctx context.Context, s store.Store, id int64) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockMenuItem(ctx, id)
		if err != nil {
			return err
		}
		return tx.SetStock(ctx, id, locked.StockCount-1)
	})
}

func TestSlowFillDoesNotRestoreOldStock(t *testing.T) {
	ctx := context.Background()
	c := newSlowFillCache()
	s := NewCachedStore(memory.NewStore(), c)
	item := &models.MenuItem{Name: "Poha", Price: decimal.NewFromInt(30), StockCount: 5}
	require.NoError(t, s.Menu().Create(ctx, item))

	done := make(chan *models.MenuItem, 1)
	go func() {
		got, err := s.Menu().GetByID(ctx, item.ID)
		assert.NoError(t, err)
		done <- got
	}()

	<-c.paused
	require.NoError(t, reserveOne(ctx, s, item.ID))
	close(c.release)

	// The in-flight read saw the old stock; it must not be cached.
	assert.Equal(t, 5, (<-done).StockCount)
	assert.False(t, c.has(menuItemKey(item.ID)))

	got, err := s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StockCount)

	got, err = s.Menu().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StockCount)
	assert.Equal(t, 1, c.hits)
}

func TestSlowAvailableListDoesNotKeepSoldOutItem(t *testing.T) {
	ctx := context.Background()
	c := newSlowFillCache()
	s := NewCachedStore(memory.NewStore(), c)
	item := &models.MenuItem{Name: "Upma", Price: decimal.NewFromInt(30), StockCount: 1}
	require.NoError(t, s.Menu().Create(ctx, item))

	done := make(chan []models.MenuItem, 1)
	go func() {
		items, err := s.Menu().FindByStockGreaterThan(ctx, 0)
		assert.NoError(t, err)
		done <- items
	}()

	<-c.paused
	require.NoError(t, reserveOne(ctx, s, item.ID))
	close(c.release)

	assert.Len(t, <-done, 1)
	assert.False(t, c.has(availableMenuItemsKey))

	available, err := s.Menu().FindByStockGreaterThan(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, c, _ := newCachedTestStore(t)

	missing, err := s.Menu().GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.False(t, c.has(menuItemKey(404)))
}
