package orders

import (
	"time"

	"github.com/tindahan/marketplace-backend/internal/checkout/helpers"
	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	"github.com/tindahan/marketplace-backend/pkg/money"
)

// SellerPartition is one seller's share of an order. The delivery fee is never apportioned.
type SellerPartition struct {
	SellerID    string
	Items       []models.OrderItem
	SellerTotal money.Amount
	ItemCount   int
	UnitsSold   int
}

// PartitionFor returns sellerID's lines of the order. A seller with no lines gets an empty partition.
func PartitionFor(order models.Order, sellerID string) SellerPartition {
	var items []models.OrderItem
	for _, item := range order.Items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	totals := helpers.ComputeSellerTotals(items)
	return SellerPartition{
		SellerID:    sellerID,
		Items:       items,
		SellerTotal: totals.Subtotal,
		ItemCount:   totals.ItemCount,
		UnitsSold:   totals.UnitCount,
	}
}

// Partitions splits the order by seller in first-appearance order.
func Partitions(order models.Order) []SellerPartition {
	grouped := helpers.GroupItemsBySeller(order.Items)
	sellers := order.SellerIDs()
	out := make([]SellerPartition, 0, len(sellers))
	for _, sellerID := range sellers {
		items := grouped[sellerID]
		totals := helpers.ComputeSellerTotals(items)
		out = append(out, SellerPartition{
			SellerID:    sellerID,
			Items:       items,
			SellerTotal: totals.Subtotal,
			ItemCount:   totals.ItemCount,
			UnitsSold:   totals.UnitCount,
		})
	}
	return out
}

// RevenueReport aggregates a seller's partitions over a creation-time range.
type RevenueReport struct {
	SellerID   string       `json:"sellerId"`
	From       time.Time    `json:"from"`
	To         time.Time    `json:"to"`
	OrderCount int          `json:"orderCount"`
	ItemCount  int          `json:"itemCount"`
	UnitsSold  int          `json:"unitsSold"`
	GrossSales money.Amount `json:"grossSales"`
}

func countsTowardRevenue(order models.Order) bool {
	return order.PaymentStatus != enums.PaymentStatusRefunded &&
		order.OrderStatus != enums.OrderStatusCancelled
}

// BuildRevenueReport sums sellerID's partitions of the qualifying orders.
func BuildRevenueReport(sellerID string, from, to time.Time, orders []models.Order) RevenueReport {
	report := RevenueReport{SellerID: sellerID, From: from.UTC(), To: to.UTC()}
	for _, order := range orders {
		if !countsTowardRevenue(order) {
			continue
		}
		partition := PartitionFor(order, sellerID)
		if partition.ItemCount == 0 {
			continue
		}
		report.OrderCount++
		report.ItemCount += partition.ItemCount
		report.UnitsSold += partition.UnitsSold
		report.GrossSales += partition.SellerTotal
	}
	return report
}
