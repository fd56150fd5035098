package helpers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
)

// StockShortfall describes one line that asks for more than was available.
type StockShortfall struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ValidateCartLines checks the shape of every line and reports all problems at once.
func ValidateCartLines(lines []CartLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	problems := map[string]string{}
	for i, line := range lines {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(line.ProductID) == "" {
			problems[prefix+".productId"] = "is required"
		}
		if strings.TrimSpace(line.SellerID) == "" {
			problems[prefix+".sellerId"] = "is required"
		}
		if line.Quantity <= 0 {
			problems[prefix+".quantity"] = "must be greater than zero"
		}
		if line.Price.IsNegative() {
			problems[prefix+".price"] = "must not be negative"
		}
		if line.Stock < 0 {
			problems[prefix+".stock"] = "must not be negative"
		}
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart items").WithDetails(problems)
	}
	return nil
}

// ValidateStock rejects lines whose quantity exceeds the stock captured at checkout.
// Lines must already be merged so duplicates are checked against their combined quantity.
func ValidateStock(lines []CartLine) error {
	var shortfalls []StockShortfall
	for _, line := range lines {
		if line.Quantity > line.Stock {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID: line.ProductID,
				SellerID:  line.SellerID,
				Requested: line.Quantity,
				Available: line.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeStockExceeded, "requested quantity exceeds available stock").
			WithDetails(map[string]any{"items": shortfalls})
	}
	return nil
}

// ValidateShipping enforces the address fields each shipping method needs.
func ValidateShipping(method enums.ShippingMethod, addr models.ShippingAddress) error {
	problems := map[string]string{}
	if method == enums.ShippingMethodLocalDelivery && strings.TrimSpace(addr.Address) == "" {
		problems["shippingAddress.address"] = "is required for local-delivery"
	}
	if strings.TrimSpace(addr.RecipientName) == "" {
		problems["shippingAddress.recipientName"] = "is required"
	}
	if strings.TrimSpace(addr.RecipientPhone) == "" {
		problems["shippingAddress.recipientPhone"] = "is required"
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping address").WithDetails(problems)
	}
	return nil
}

// ValidateReceiptURL accepts absolute http(s) URLs only.
func ValidateReceiptURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiptImageUrl must be an absolute http(s) URL").
			WithDetails(map[string]string{"receiptImageUrl": "invalid url"})
	}
	return nil
}
