package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/apperrors"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *faultyStore
	clock     *fakeClock
	publisher *recordingPublisher
	inventory *InventoryService
	svc       *OrderService
}

func TestOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newFaultyStore()
	s.clock = newFakeClock()
	s.publisher = &recordingPublisher{}
	s.inventory = NewInventoryService(s.store, testLogger())
	s.svc = NewOrderService(OrderServiceConfig{
		Store:          s.store,
		Inventory:      s.inventory,
		Publisher:      s.publisher,
		Clock:          s.clock,
		Logger:         testLogger(),
		PendingTimeout: 15 * time.Minute,
	})
}

func (s *OrderServiceTestSuite) createItem(name string, price string, stock int) *models.MenuItem {
	item, err := s.inventory.CreateMenuItem(s.ctx, models.MenuItemRequest{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
	})
	s.Require().NoError(err)
	return item
}

func (s *OrderServiceTestSuite) stockOf(id int64) int {
	item, err := s.inventory.GetMenuItem(s.ctx, id)
	s.Require().NoError(err)
	return item.StockCount
}

func (s *OrderServiceTestSuite) statusOf(id int64) models.OrderStatus {
	order, err := s.svc.GetOrder(s.ctx, id)
	s.Require().NoError(err)
	return order.Status
}

func (s *OrderServiceTestSuite) TestCreateOrderReservesOneUnit() {
	item := s.createItem("Idli", "30", 5)

	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPending, order.Status)
	s.Equal(item.ID, order.MenuItemID)
	s.Equal(s.clock.Now(), order.CreatedAt)
	s.Equal(4, s.stockOf(item.ID))

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	s.Equal(models.OrderCreatedEvent, events[0].Type)
	s.Equal(order.ID, events[0].OrderID)
}

func (s *OrderServiceTestSuite) TestCreateOrderOnEmptyStock() {
	item := s.createItem("Idli", "30", 0)

	_, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.ErrorIs(err, apperrors.ErrInsufficientStock)
	s.Contains(err.Error(), "Idli")
	s.Equal(0, s.stockOf(item.ID))

	orders, err := s.svc.GetAllOrders(s.ctx)
	s.NoError(err)
	s.Empty(orders)
	s.Empty(s.publisher.Events())
}

func (s *OrderServiceTestSuite) TestCreateOrderForMissingItem() {
	_, err := s.svc.CreateOrder(s.ctx, 77)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *OrderServiceTestSuite) TestCreateOrderStorageFaultLeavesNothingBehind() {
	item := s.createItem("Idli", "30", 5)
	s.store.FailSetStock(item.ID)

	_, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.ErrorIs(err, apperrors.ErrStorageFault)
	s.Equal(5, s.stockOf(item.ID))

	orders, _ := s.svc.GetAllOrders(s.ctx)
	s.Empty(orders)
}

func (s *OrderServiceTestSuite) TestCancelReleasesStockOnce() {
	item := s.createItem("Vada", "20", 5)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(4, s.stockOf(item.ID))

	s.clock.Advance(time.Minute)
	cancelled, err := s.svc.CancelOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, cancelled.Status)
	s.Equal(s.clock.Now(), cancelled.UpdatedAt)
	s.Equal(order.CreatedAt, cancelled.CreatedAt)
	s.Equal(5, s.stockOf(item.ID))

	_, err = s.svc.CancelOrder(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrInvalidState)
	s.Equal("order is already cancelled", err.Error())
	s.Equal(5, s.stockOf(item.ID))

	events := s.publisher.Events()
	s.Require().Len(events, 2)
	s.Equal(models.OrderCancelledEvent, events[1].Type)
	s.Equal(models.CancelReasonCustomer, events[1].Reason)
}

func (s *OrderServiceTestSuite) TestCancelMissingOrder() {
	_, err := s.svc.CancelOrder(s.ctx, 5)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *OrderServiceTestSuite) TestPayThenCancelIsRejected() {
	item := s.createItem("Vada", "20", 5)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)

	paid, err := s.svc.PayOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPaid, paid.Status)
	s.Equal(4, s.stockOf(item.ID))

	_, err = s.svc.CancelOrder(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrInvalidState)
	s.Equal("cannot cancel a paid order", err.Error())
	s.Equal(4, s.stockOf(item.ID))
	s.Equal(models.OrderStatusPaid, s.statusOf(order.ID))
}

func (s *OrderServiceTestSuite) TestPayOnlyPending() {
	item := s.createItem("Vada", "20", 5)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	_, err = s.svc.CancelOrder(s.ctx, order.ID)
	s.Require().NoError(err)

	_, err = s.svc.PayOrder(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrInvalidState)
	s.Equal("only pending orders can be paid", err.Error())

	_, err = s.svc.PayOrder(s.ctx, 999)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *OrderServiceTestSuite) TestCancelRollsBackWhenReleaseFails() {
	item := s.createItem("Vada", "20", 5)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	s.store.FailSetStock(item.ID)

	_, err = s.svc.CancelOrder(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrStorageFault)
	s.Equal(models.OrderStatusPending, s.statusOf(order.ID))
	s.Equal(4, s.stockOf(item.ID))
}

func (s *OrderServiceTestSuite) TestPublishFailureDoesNotFailRequest() {
	s.publisher.err = errors.New("broker down")
	item := s.createItem("Vada", "20", 5)

	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.NoError(err)
	s.NotNil(order)
}

func (s *OrderServiceTestSuite) TestConcurrentCreatesAgainstLastUnit() {
	item := s.createItem("Last Samosa", "15", 1)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for n := 0; n < buyers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.CreateOrder(s.ctx, item.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrInsufficientStock):
				rejected++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(buyers-1, rejected)
	s.Equal(0, s.stockOf(item.ID))

	pending, err := s.svc.GetPendingOrders(s.ctx)
	s.NoError(err)
	s.Len(pending, 1)
}

func (s *OrderServiceTestSuite) TestConcurrentPayAndCancelHaveOneWinner() {
	item := s.createItem("Chai", "10", 3)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var payErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, payErr = s.svc.PayOrder(s.ctx, order.ID)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = s.svc.CancelOrder(s.ctx, order.ID)
	}()
	wg.Wait()

	s.True((payErr == nil) != (cancelErr == nil), "exactly one transition must win")
	if payErr == nil {
		s.ErrorIs(cancelErr, apperrors.ErrInvalidState)
		s.Equal(2, s.stockOf(item.ID))
	} else {
		s.ErrorIs(payErr, apperrors.ErrInvalidState)
		s.Equal(3, s.stockOf(item.ID))
	}
}

func (s *OrderServiceTestSuite) TestSweepRespectsTimeout() {
	item := s.createItem("Poha", "25", 3)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)

	s.clock.Advance(14 * time.Minute)
	result, err := s.svc.AutoCancelStalePending(s.ctx)
	s.NoError(err)
	s.Equal(SweepResult{}, result)
	s.Equal(models.OrderStatusPending, s.statusOf(order.ID))
	s.Equal(2, s.stockOf(item.ID))

	s.clock.Advance(2 * time.Minute)
	result, err = s.svc.AutoCancelStalePending(s.ctx)
	s.NoError(err)
	s.Equal(SweepResult{Scanned: 1, Cancelled: 1}, result)
	s.Equal(models.OrderStatusCancelled, s.statusOf(order.ID))
	s.Equal(3, s.stockOf(item.ID))

	events := s.publisher.Events()
	s.Require().Len(events, 2)
	s.Equal(models.CancelReasonTimeout, events[1].Reason)
}

func (s *OrderServiceTestSuite) TestSweepLeavesPaidOrdersAlone() {
	item := s.createItem("Poha", "25", 3)
	order, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	_, err = s.svc.PayOrder(s.ctx, order.ID)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	result, err := s.svc.AutoCancelStalePending(s.ctx)
	s.NoError(err)
	s.Zero(result.Scanned)
	s.Equal(models.OrderStatusPaid, s.statusOf(order.ID))
}

func (s *OrderServiceTestSuite) TestConcurrentSweepsReleaseOnce() {
	item := s.createItem("Upma", "35", 10)
	for n := 0; n < 6; n++ {
		_, err := s.svc.CreateOrder(s.ctx, item.ID)
		s.Require().NoError(err)
	}
	s.Equal(4, s.stockOf(item.ID))
	s.clock.Advance(20 * time.Minute)

	var wg sync.WaitGroup
	results := make([]SweepResult, 2)
	for i := range results {
		i := i // per-iteration copy (Go 1.22 loopvar semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.svc.AutoCancelStalePending(s.ctx)
			s.NoError(err)
			results[i] = res
		}()
	}
	wg.Wait()

	s.Equal(6, results[0].Cancelled+results[1].Cancelled)
	s.Zero(results[0].Failed + results[1].Failed)
	s.Equal(10, s.stockOf(item.ID))

	cancelled, err := s.svc.GetCancelledOrders(s.ctx)
	s.NoError(err)
	s.Len(cancelled, 6)
}

func (s *OrderServiceTestSuite) TestSweepIsolatesFailures() {
	good := s.createItem("Poori", "40", 5)
	bad := s.createItem("Pongal", "45", 5)

	first, err := s.svc.CreateOrder(s.ctx, good.ID)
	s.Require().NoError(err)
	s.clock.Advance(time.Second)
	broken, err := s.svc.CreateOrder(s.ctx, bad.ID)
	s.Require().NoError(err)
	s.clock.Advance(time.Second)
	last, err := s.svc.CreateOrder(s.ctx, good.ID)
	s.Require().NoError(err)

	s.store.FailSetStock(bad.ID)
	s.clock.Advance(30 * time.Minute)

	result, err := s.svc.AutoCancelStalePending(s.ctx)
	s.NoError(err)
	s.Equal(SweepResult{Scanned: 3, Cancelled: 2, Failed: 1}, result)

	s.Equal(models.OrderStatusCancelled, s.statusOf(first.ID))
	s.Equal(models.OrderStatusCancelled, s.statusOf(last.ID))
	s.Equal(models.OrderStatusPending, s.statusOf(broken.ID))
	s.Equal(5, s.stockOf(good.ID))
	s.Equal(4, s.stockOf(bad.ID))
}

func (s *OrderServiceTestSuite) TestSweepListFailureIsReturned() {
	s.store.FailOrderList(true)

	_, err := s.svc.AutoCancelStalePending(s.ctx)
	s.ErrorIs(err, apperrors.ErrStorageFault)
}

func (s *OrderServiceTestSuite) TestHistoryIsNewestFirst() {
	item := s.createItem("Lassi", "30", 10)

	oldest, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	s.clock.Advance(time.Minute)
	tieA, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	tieB, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)
	s.clock.Advance(time.Minute)
	newest, err := s.svc.CreateOrder(s.ctx, item.ID)
	s.Require().NoError(err)

	history, err := s.svc.GetOrderHistory(s.ctx)
	s.Require().NoError(err)
	var ids []int64
	for _, o := range history {
		ids = append(ids, o.ID)
	}
	s.Equal([]int64{newest.ID, tieA.ID, tieB.ID, oldest.ID}, ids)
}

func (s *OrderServiceTestSuite) TestOrdersByStatus() {
	_, err := s.svc.GetOrdersByStatus(s.ctx, models.OrderStatus("SHIPPED"))
	s.ErrorIs(err, apperrors.ErrInvalidInput)

	paid, err := s.svc.GetPaidOrders(s.ctx)
	s.NoError(err)
	s.Empty(paid)
}

func (s *OrderServiceTestSuite) TestOrderStats() {
	dosa := s.createItem("Dosa", "50.50", 10)
	coffee := s.createItem("Coffee", "20", 10)

	paidDosa, _ := s.svc.CreateOrder(s.ctx, dosa.ID)
	paidCoffee, _ := s.svc.CreateOrder(s.ctx, coffee.ID)
	cancelled, _ := s.svc.CreateOrder(s.ctx, dosa.ID)
	_, _ = s.svc.CreateOrder(s.ctx, coffee.ID)

	_, err := s.svc.PayOrder(s.ctx, paidDosa.ID)
	s.Require().NoError(err)
	_, err = s.svc.PayOrder(s.ctx, paidCoffee.ID)
	s.Require().NoError(err)
	_, err = s.svc.CancelOrder(s.ctx, cancelled.ID)
	s.Require().NoError(err)

	stats, err := s.svc.GetOrderStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.TotalOrders)
	s.Equal(1, stats.PendingOrders)
	s.Equal(2, stats.PaidOrders)
	s.Equal(1, stats.CancelledOrders)
	s.True(decimal.RequireFromString("70.50").Equal(stats.TotalRevenue), "revenue %s", stats.TotalRevenue)

	s.Require().NoError(s.inventory.DeleteMenuItem(s.ctx, coffee.ID))
	stats, err = s.svc.GetOrderStats(s.ctx)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("50.50").Equal(stats.TotalRevenue))
}

func (s *OrderServiceTestSuite) TestDescribeAttachesCurrentMenuItem() {
	dosa := s.createItem("Dosa", "50.50", 10)
	vada := s.createItem("Vada", "15", 10)

	first, err := s.svc.CreateOrder(s.ctx, dosa.ID)
	s.Require().NoError(err)
	second, err := s.svc.CreateOrder(s.ctx, vada.ID)
	s.Require().NoError(err)

	one, err := s.svc.Describe(s.ctx, *first)
	s.Require().NoError(err)
	s.Require().Len(one, 1)
	s.Require().NotNil(one[0].MenuItem)
	s.Equal("Dosa", one[0].MenuItem.Name)
	s.Equal(9, one[0].MenuItem.StockCount)
	s.True(decimal.RequireFromString("50.50").Equal(one[0].TotalPrice))

	s.Require().NoError(s.inventory.DeleteMenuItem(s.ctx, vada.ID))
	views, err := s.svc.Describe(s.ctx, *first, *second)
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.Equal(first.ID, views[0].ID)
	s.NotNil(views[0].MenuItem)
	s.Equal(second.ID, views[1].ID)
	s.Nil(views[1].MenuItem)
	s.True(views[1].TotalPrice.IsZero())

	empty, err := s.svc.Describe(s.ctx)
	s.Require().NoError(err)
	s.Empty(empty)
}
