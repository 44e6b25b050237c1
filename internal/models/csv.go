package models

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSVRow is a record that can be written as one CSV line
type CSVRow interface {
	CSVRecord() []string
}

// WriteCSV writes the header followed by one line per row
func WriteCSV[T CSVRow](path string, columns []string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.CSVRecord()); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV reads a file whose header must match columns exactly and parses each line
func ReadCSV[T any](path string, columns []string, parse func([]string) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(columns)

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w: empty file", path, ErrColumnMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if err := CheckColumns(columns, header); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []T
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		row, err := parse(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (c Customer) CSVRecord() []string {
	return []string{
		c.CustomerID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.RegistrationDate.Format(DateLayout), c.City, c.State, c.Country, c.AgeGroup,
	}
}

// ParseCustomer decodes a line laid out as CustomerColumns
func ParseCustomer(rec []string) (Customer, error) {
	reg, err := parseDate(rec[5])
	if err != nil {
		return Customer{}, fmt.Errorf("registration_date: %w", err)
	}
	return Customer{
		CustomerID:       rec[0],
		FirstName:        rec[1],
		LastName:         rec[2],
		Email:            rec[3],
		Phone:            rec[4],
		RegistrationDate: reg,
		City:             rec[6],
		State:            rec[7],
		Country:          rec[8],
		AgeGroup:         rec[9],
	}, nil
}

func (p Product) CSVRecord() []string {
	return []string{
		p.ProductID, p.ProductName, p.Category, p.SubCategory, p.Price.StringFixed(2),
		p.Cost.StringFixed(2), p.Brand, strconv.Itoa(p.StockQuantity), p.SupplierID,
	}
}

// ParseProduct decodes a line laid out as ProductColumns
func ParseProduct(rec []string) (Product, error) {
	price, err := parseDecimal(rec[4])
	if err != nil {
		return Product{}, fmt.Errorf("price: %w", err)
	}
	cost, err := parseDecimal(rec[5])
	if err != nil {
		return Product{}, fmt.Errorf("cost: %w", err)
	}
	stock, err := parseInt(rec[7])
	if err != nil {
		return Product{}, fmt.Errorf("stock_quantity: %w", err)
	}
	return Product{
		ProductID:     rec[0],
		ProductName:   rec[1],
		Category:      rec[2],
		SubCategory:   rec[3],
		Price:         price,
		Cost:          cost,
		Brand:         rec[6],
		StockQuantity: stock,
		SupplierID:    rec[8],
	}, nil
}

func (t Transaction) CSVRecord() []string {
	return []string{
		t.TransactionID, t.CustomerID, t.TransactionDate.Format(DateLayout), t.TransactionTime,
		t.PaymentMethod, t.ShippingAddress, t.TotalAmount.StringFixed(2),
	}
}

// ParseTransaction decodes a line laid out as TransactionColumns
func ParseTransaction(rec []string) (Transaction, error) {
	date, err := parseDate(rec[2])
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction_date: %w", err)
	}
	if _, err := time.Parse(TimeLayout, rec[3]); err != nil {
		return Transaction{}, fmt.Errorf("transaction_time: %w", err)
	}
	total, err := parseDecimal(rec[6])
	if err != nil {
		return Transaction{}, fmt.Errorf("total_amount: %w", err)
	}
	return Transaction{
		TransactionID:   rec[0],
		CustomerID:      rec[1],
		TransactionDate: date,
		TransactionTime: rec[3],
		PaymentMethod:   rec[4],
		ShippingAddress: rec[5],
		TotalAmount:     total,
	}, nil
}

func (i TransactionItem) CSVRecord() []string {
	return []string{
		i.ItemID, i.TransactionID, i.ProductID, strconv.Itoa(i.Quantity), i.UnitPrice.StringFixed(2),
		i.DiscountPercentage.String(), i.LineTotal.StringFixed(2),
	}
}

// ParseTransactionItem decodes a line laid out as TransactionItemColumns
func ParseTransactionItem(rec []string) (TransactionItem, error) {
	qty, err := parseInt(rec[3])
	if err != nil {
		return TransactionItem{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := parseDecimal(rec[4])
	if err != nil {
		return TransactionItem{}, fmt.Errorf("unit_price: %w", err)
	}
	discount, err := parseDecimal(rec[5])
	if err != nil {
		return TransactionItem{}, fmt.Errorf("discount_percentage: %w", err)
	}
	total, err := parseDecimal(rec[6])
	if err != nil {
		return TransactionItem{}, fmt.Errorf("line_total: %w", err)
	}
	return TransactionItem{
		ItemID:             rec[0],
		TransactionID:      rec[1],
		ProductID:          rec[2],
		Quantity:           qty,
		UnitPrice:          price,
		DiscountPercentage: discount,
		LineTotal:          total,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// empty numeric cells decode as zero so business rules can reject them downstream
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
