package helpers

import (
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
	"github.com/tindahan/marketplace-backend/pkg/money"
)

// CartLine is one line of the cart snapshot as submitted at checkout.
type CartLine struct {
	ProductID   string
	ProductName string
	Image       string
	SellerID    string
	Quantity    int
	Price       money.Amount
	Stock       int
}

// MergeDuplicateLines folds lines for the same product and seller into one,
// summing quantities and keeping the first line's position. The smallest stock
// reported for the product wins.
func MergeDuplicateLines(lines []CartLine) []CartLine {
	type key struct{ product, seller string }
	index := make(map[key]int, len(lines))
	merged := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		k := key{line.ProductID, line.SellerID}
		if i, ok := index[k]; ok {
			merged[i].Quantity += line.Quantity
			if line.Stock < merged[i].Stock {
				merged[i].Stock = line.Stock
			}
			continue
		}
		index[k] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// ToOrderItems converts validated cart lines to the stored item snapshot.
func ToOrderItems(lines []CartLine) []models.OrderItem {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Image:       line.Image,
			Quantity:    line.Quantity,
			PriceCents:  line.Price.Cents(),
			SellerID:    line.SellerID,
		}
	}
	return items
}

// GroupItemsBySeller groups the provided order items by seller.
func GroupItemsBySeller(items []models.OrderItem) map[string][]models.OrderItem {
	grouped := make(map[string][]models.OrderItem, len(items))
	for _, item := range items {
		grouped[item.SellerID] = append(grouped[item.SellerID], item)
	}
	return grouped
}

// SellerTotals captures pre-calculated totals for a seller's share of an order.
type SellerTotals struct {
	SellerID  string
	Subtotal  money.Amount
	ItemCount int
	UnitCount int
}

// ComputeSellerTotals sums the lines of a single seller.
func ComputeSellerTotals(items []models.OrderItem) SellerTotals {
	var totals SellerTotals
	if len(items) == 0 {
		return totals
	}
	totals.SellerID = items[0].SellerID
	for _, item := range items {
		totals.Subtotal += LineTotal(item)
		totals.ItemCount++
		totals.UnitCount += item.Quantity
	}
	return totals
}

// ItemsSubtotal is the sum of price*quantity over every line. A line total or a
// running sum outside the centavo range is a validation error naming the product.
func ItemsSubtotal(items []models.OrderItem) (money.Amount, error) {
	var subtotal money.Amount
	for _, item := range items {
		line, err := money.Cents(item.PriceCents).Times(item.Quantity)
		if err == nil {
			subtotal, err = money.Sum(subtotal, line)
		}
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order total out of range").
				WithDetails(map[string]string{"productId": item.ProductID, "items": "order total exceeds the maximum amount"})
		}
	}
	return subtotal, nil
}

// LineTotal is price*quantity of a stored line. Checkout rejects carts whose totals
// overflow, so stored lines always fit.
func LineTotal(item models.OrderItem) money.Amount {
	total, _ := money.Cents(item.PriceCents).Times(item.Quantity)
	return total
}
