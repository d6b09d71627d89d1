package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/service"
)

var defaultMenu = []models.MenuItemRequest{
	{Name: "Masala Dosa", Category: "Breakfast", Description: "Crispy dosa with potato masala, sambar and chutney", Price: decimal.RequireFromString("60.00"), StockCount: 25},
	{Name: "Idli Vada", Category: "Breakfast", Description: "Two idlis and a medu vada", Price: decimal.RequireFromString("45.00"), StockCount: 30},
	{Name: "Veg Thali", Category: "Meals", Description: "Rice, dal, two sabzis, roti and curd", Price: decimal.RequireFromString("110.00"), StockCount: 40},
	{Name: "Paneer Roll", Category: "Snacks", Price: decimal.RequireFromString("75.00"), StockCount: 20},
	{Name: "Samosa", Category: "Snacks", Price: decimal.RequireFromString("15.00"), StockCount: 50},
	{Name: "Filter Coffee", Category: "Beverages", Price: decimal.RequireFromString("20.00"), StockCount: 100},
	{Name: "Masala Chai", Category: "Beverages", Price: decimal.RequireFromString("15.00"), StockCount: 100},
}

// seedMenu inserts the default menu when the menu is empty
func seedMenu(ctx context.Context, inventory *service.InventoryService) error {
	existing, err := inventory.ListMenuItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to check menu before seeding: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("ℹ️ Menu already has %d items, skipping seed", len(existing))
		return nil
	}

	for _, req := range defaultMenu {
		if _, err := inventory.CreateMenuItem(ctx, req); err != nil {
			return fmt.Errorf("failed to seed %s: %w", req.Name, err)
		}
	}

	log.Printf("🌱 Seeded %d menu items", len(defaultMenu))
	return nil
}
