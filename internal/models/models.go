package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk format of calendar dates
const DateLayout = "2006-01-02"

// TimeLayout is the on-disk format of a transaction's time of day
const TimeLayout = "15:04:05"

// Customer represents a shopper
type Customer struct {
	CustomerID       string    `db:"customer_id" json:"customer_id"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	RegistrationDate time.Time `db:"registration_date" json:"registration_date"`
	City             string    `db:"city" json:"city"`
	State            string    `db:"state" json:"state"`
	Country          string    `db:"country" json:"country"`
	AgeGroup         string    `db:"age_group" json:"age_group"`
}

// Product represents a catalog entry. ProfitMargin and PriceCategory are
// derived on promotion to production and are zero before that.
type Product struct {
	ProductID     string          `db:"product_id" json:"product_id"`
	ProductName   string          `db:"product_name" json:"product_name"`
	Category      string          `db:"category" json:"category"`
	SubCategory   string          `db:"sub_category" json:"sub_category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Cost          decimal.Decimal `db:"cost" json:"cost"`
	Brand         string          `db:"brand" json:"brand"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	SupplierID    string          `db:"supplier_id" json:"supplier_id"`
	ProfitMargin  decimal.Decimal `db:"profit_margin" json:"profit_margin"`
	PriceCategory string          `db:"price_category" json:"price_category"`
}

// Transaction represents an order header
type Transaction struct {
	TransactionID   string          `db:"transaction_id" json:"transaction_id"`
	CustomerID      string          `db:"customer_id" json:"customer_id"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
	TransactionTime string          `db:"transaction_time" json:"transaction_time"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
}

// TransactionItem represents one order line
type TransactionItem struct {
	ItemID             string          `db:"item_id" json:"item_id"`
	TransactionID      string          `db:"transaction_id" json:"transaction_id"`
	ProductID          string          `db:"product_id" json:"product_id"`
	Quantity           int             `db:"quantity" json:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discount_percentage"`
	LineTotal          decimal.Decimal `db:"line_total" json:"line_total"`
}

// DimPaymentMethod is one row of the payment-method dimension
type DimPaymentMethod struct {
	Name string `db:"payment_method_name" json:"payment_method_name"`
	Type string `db:"payment_type" json:"payment_type"`
}

// NewDimPaymentMethod classifies method into its dimension row
func NewDimPaymentMethod(method string) DimPaymentMethod {
	return DimPaymentMethod{Name: method, Type: PaymentType(method)}
}

// DimDate is one calendar day of the warehouse date dimension
type DimDate struct {
	DateKey    int       `db:"date_key" json:"date_key"`
	FullDate   time.Time `db:"full_date" json:"full_date"`
	Year       int       `db:"year" json:"year"`
	Quarter    int       `db:"quarter" json:"quarter"`
	Month      int       `db:"month" json:"month"`
	Day        int       `db:"day" json:"day"`
	MonthName  string    `db:"month_name" json:"month_name"`
	DayName    string    `db:"day_name" json:"day_name"`
	WeekOfYear int       `db:"week_of_year" json:"week_of_year"`
	IsWeekend  bool      `db:"is_weekend" json:"is_weekend"`
	IsHoliday  bool      `db:"is_holiday" json:"is_holiday"`
}

// Payment methods offered at checkout
const (
	PaymentCreditCard     = "Credit Card"
	PaymentDebitCard      = "Debit Card"
	PaymentUPI            = "UPI"
	PaymentCashOnDelivery = "Cash on Delivery"
	PaymentNetBanking     = "Net Banking"
)

// PaymentMethods lists every payment method the generator draws from
var PaymentMethods = []string{
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentUPI,
	PaymentCashOnDelivery,
	PaymentNetBanking,
}

// Payment types of the payment-method dimension
const (
	PaymentTypeOnline  = "Online"
	PaymentTypeOffline = "Offline"
)

// PaymentType classifies a payment method; cash on delivery is the only offline method
func PaymentType(method string) string {
	if method == PaymentCashOnDelivery {
		return PaymentTypeOffline
	}
	return PaymentTypeOnline
}

var hundred = decimal.NewFromInt(100)

// LineTotal computes quantity * unit price * (1 - discount/100), rounded to cents
func LineTotal(quantity int, unitPrice, discountPct decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return gross.Mul(hundred.Sub(discountPct)).Div(hundred).Round(2)
}

// LineTotalTolerance is the largest accepted drift between a stored and a recomputed line total
var LineTotalTolerance = decimal.RequireFromString("0.01")

// LineTotalConsistent reports whether the item's line total matches its inputs
func (i TransactionItem) LineTotalConsistent() bool {
	expected := LineTotal(i.Quantity, i.UnitPrice, i.DiscountPercentage)
	return i.LineTotal.Sub(expected).Abs().LessThanOrEqual(LineTotalTolerance)
}
