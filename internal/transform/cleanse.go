package transform

import (
	"strings"
	"unicode"

	"ecommerce-etl/internal/models"

	"github.com/shopspring/decimal"
)

// Price categories
const (
	PriceBudget   = "Budget"
	PriceMidRange = "Mid-range"
	PricePremium  = "Premium"
)

// Defaults for missing product attributes
const (
	UnknownProduct     = "Unknown Product"
	UnknownCategory    = "Unknown"
	UnknownSubCategory = "Unknown"
	UnknownBrand       = "Unknown Brand"
)

var (
	budgetCeiling   = decimal.NewFromInt(50)
	midRangeCeiling = decimal.NewFromInt(200)
	hundred         = decimal.NewFromInt(100)
)

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// Any non-letter starts a new word.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// DigitsOnly strips every non-digit character
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanseCustomer normalizes names, email and phone
func CleanseCustomer(c models.Customer) models.Customer {
	c.FirstName = TitleCase(strings.TrimSpace(c.FirstName))
	c.LastName = TitleCase(strings.TrimSpace(c.LastName))
	c.Email = NormalizeEmail(c.Email)
	c.Phone = DigitsOnly(c.Phone)
	return c
}

// PriceCategory buckets a price: up to 50 Budget, up to 200 Mid-range, above Premium
func PriceCategory(price decimal.Decimal) string {
	switch {
	case price.LessThanOrEqual(budgetCeiling):
		return PriceBudget
	case price.LessThanOrEqual(midRangeCeiling):
		return PriceMidRange
	default:
		return PricePremium
	}
}

// ProfitMargin returns (price - cost) / price * 100 rounded to 2 places, or zero for a non-positive price
func ProfitMargin(price, cost decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(price).Mul(hundred).Round(2)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

// CleanseProduct fills missing attributes and derives margin and price category
func CleanseProduct(p models.Product) models.Product {
	p.ProductName = orDefault(p.ProductName, UnknownProduct)
	p.Category = orDefault(p.Category, UnknownCategory)
	p.SubCategory = orDefault(p.SubCategory, UnknownSubCategory)
	p.Brand = orDefault(p.Brand, UnknownBrand)
	p.ProfitMargin = ProfitMargin(p.Price, p.Cost)
	p.PriceCategory = PriceCategory(p.Price)
	return p
}

// Drop reasons recorded in the transformation summary
const (
	ReasonNonPositivePrice     = "non_positive_price"
	ReasonNegativeCost         = "negative_cost"
	ReasonNonPositiveAmount    = "non_positive_total_amount"
	ReasonNonPositiveQuantity  = "non_positive_quantity"
	ReasonOrphanedTransactions = "orphaned_transactions"
	ReasonOrphanedItems        = "orphaned_items"
)

// ProductRejection returns the business rule a product violates, or ""
func ProductRejection(p models.Product) string {
	switch {
	case !p.Price.IsPositive():
		return ReasonNonPositivePrice
	case p.Cost.IsNegative():
		return ReasonNegativeCost
	}
	return ""
}

// TransactionRejection returns the business rule a transaction violates, or ""
func TransactionRejection(t models.Transaction) string {
	if !t.TotalAmount.IsPositive() {
		return ReasonNonPositiveAmount
	}
	return ""
}

// ItemRejection returns the business rule an item violates, or ""
func ItemRejection(i models.TransactionItem) string {
	if i.Quantity <= 0 {
		return ReasonNonPositiveQuantity
	}
	return ""
}
