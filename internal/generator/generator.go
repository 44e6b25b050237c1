package generator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ecommerce-etl/config"
	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/util"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MetadataFile is written next to the raw CSV files
const MetadataFile = "generation_metadata.json"

var (
	ageGroups = []string{"18-25", "26-35", "36-45", "46-60", "60+"}

	categories = []string{"Electronics", "Clothing", "Home & Kitchen", "Books", "Sports", "Beauty"}

	subCategories = map[string][]string{
		"Electronics":    {"Mobile", "Laptop", "Headphones"},
		"Clothing":       {"Shirts", "Jeans", "Jackets"},
		"Home & Kitchen": {"Cookware", "Furniture"},
		"Books":          {"Fiction", "Education"},
		"Sports":         {"Fitness", "Outdoor"},
		"Beauty":         {"Skincare", "Makeup"},
	}

	discounts = []int64{0, 5, 10, 15, 20, 25, 30}
)

const (
	minPrice        = 200
	maxPrice        = 50000
	maxItemsPerTxn  = 5
	maxQuantity     = 5
	suppliers       = 50
	maxEmailRetries = 20
)

// Dataset is one generated batch of related records
type Dataset struct {
	Customers    []models.Customer
	Products     []models.Product
	Transactions []models.Transaction
	Items        []models.TransactionItem
}

// Generator produces synthetic e-commerce records
type Generator struct {
	cfg    config.GenerationConfig
	rawDir string
	faker  *gofakeit.Faker
	now    func() time.Time
	logger *zap.Logger
}

// New creates a generator. A zero seed draws a random one.
func New(cfg config.GenerationConfig, rawDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Generator{
		cfg:    cfg,
		rawDir: rawDir,
		faker:  gofakeit.New(cfg.Seed),
		now:    time.Now,
		logger: logger,
	}
}

// Generate builds the four datasets in memory. With a configured seed every
// call yields the same dataset.
func (g *Generator) Generate() (*Dataset, error) {
	if g.cfg.Seed != 0 {
		g.faker = gofakeit.New(g.cfg.Seed)
	}
	start, end, err := g.cfg.DateRange()
	if err != nil {
		return nil, err
	}
	if g.cfg.Customers < 1 || g.cfg.Products < 1 {
		return nil, fmt.Errorf("at least one customer and one product are required, got %d and %d",
			g.cfg.Customers, g.cfg.Products)
	}

	d := &Dataset{
		Customers: g.customers(g.cfg.Customers),
		Products:  g.products(g.cfg.Products),
	}
	d.Transactions, d.Items = g.transactions(g.cfg.Transactions, d.Customers, d.Products, start, end)
	return d, nil
}

func (g *Generator) customers(n int) []models.Customer {
	today := truncateDay(g.now())
	from := today.AddDate(-3, 0, 0)
	seen := make(map[string]struct{}, n)

	out := make([]models.Customer, 0, n)
	for i := 1; i <= n; i++ {
		email := g.faker.Email()
		for retry := 0; ; retry++ {
			if _, dup := seen[strings.ToLower(email)]; !dup {
				break
			}
			if retry >= maxEmailRetries {
				at := strings.IndexByte(email, '@')
				email = fmt.Sprintf("%s.%d%s", email[:at], i, email[at:])
				continue
			}
			email = g.faker.Email()
		}
		seen[strings.ToLower(email)] = struct{}{}

		out = append(out, models.Customer{
			CustomerID:       fmt.Sprintf("CUST%04d", i),
			FirstName:        g.faker.FirstName(),
			LastName:         g.faker.LastName(),
			Email:            email,
			Phone:            g.faker.Phone(),
			RegistrationDate: truncateDay(g.faker.DateRange(from, today)),
			City:             g.faker.City(),
			State:            g.faker.State(),
			Country:          g.faker.Country(),
			AgeGroup:         g.faker.RandomString(ageGroups),
		})
	}
	return out
}

func (g *Generator) products(n int) []models.Product {
	out := make([]models.Product, 0, n)
	for i := 1; i <= n; i++ {
		category := g.faker.RandomString(categories)
		price := decimal.NewFromFloat(g.faker.Float64Range(minPrice, maxPrice)).Round(2)
		cost := price.Mul(decimal.NewFromFloat(g.faker.Float64Range(0.6, 0.9))).Round(2)

		out = append(out, models.Product{
			ProductID:     fmt.Sprintf("PROD%04d", i),
			ProductName:   capitalize(g.faker.Word()),
			Category:      category,
			SubCategory:   g.faker.RandomString(subCategories[category]),
			Price:         price,
			Cost:          cost,
			Brand:         g.faker.Company(),
			StockQuantity: g.faker.Number(10, 500),
			SupplierID:    fmt.Sprintf("SUPP%03d", g.faker.Number(1, suppliers)),
		})
	}
	return out
}

func (g *Generator) transactions(n int, customers []models.Customer, products []models.Product, start, end time.Time) ([]models.Transaction, []models.TransactionItem) {
	txns := make([]models.Transaction, 0, n)
	items := make([]models.TransactionItem, 0, n*3)
	lastInstant := end.Add(24*time.Hour - time.Nanosecond)

	itemSeq := 0
	for i := 1; i <= n; i++ {
		txn := models.Transaction{
			TransactionID:   fmt.Sprintf("TXN%05d", i),
			CustomerID:      customers[g.faker.Number(0, len(customers)-1)].CustomerID,
			TransactionDate: truncateDay(g.faker.DateRange(start, lastInstant)),
			TransactionTime: fmt.Sprintf("%02d:%02d:%02d", g.faker.Number(0, 23), g.faker.Number(0, 59), g.faker.Number(0, 59)),
			PaymentMethod:   g.faker.RandomString(models.PaymentMethods),
			ShippingAddress: g.faker.Address().Address,
		}

		total := decimal.Zero
		for k := g.faker.Number(1, maxItemsPerTxn); k > 0; k-- {
			itemSeq++
			product := products[g.faker.Number(0, len(products)-1)]
			qty := g.faker.Number(1, maxQuantity)
			discount := decimal.NewFromInt(discounts[g.faker.Number(0, len(discounts)-1)])
			lineTotal := models.LineTotal(qty, product.Price, discount)

			items = append(items, models.TransactionItem{
				ItemID:             fmt.Sprintf("ITEM%05d", itemSeq),
				TransactionID:      txn.TransactionID,
				ProductID:          product.ProductID,
				Quantity:           qty,
				UnitPrice:          product.Price,
				DiscountPercentage: discount,
				LineTotal:          lineTotal,
			})
			total = total.Add(lineTotal)
		}
		txn.TotalAmount = total
		txns = append(txns, txn)
	}
	return txns, items
}

// Run generates a dataset and writes it with its metadata to the raw directory
func (g *Generator) Run(ctx context.Context) (*models.GenerationMetadata, error) {
	_, span := util.StartSpan(ctx, "generator.Run")
	defer span.End()

	d, err := g.Generate()
	if err != nil {
		return nil, err
	}

	writes := []func() error{
		func() error {
			return models.WriteCSV(g.path(models.TableCustomers), models.CustomerColumns, d.Customers)
		},
		func() error {
			return models.WriteCSV(g.path(models.TableProducts), models.ProductColumns, d.Products)
		},
		func() error {
			return models.WriteCSV(g.path(models.TableTransactions), models.TransactionColumns, d.Transactions)
		},
		func() error {
			return models.WriteCSV(g.path(models.TableTransactionItems), models.TransactionItemColumns, d.Items)
		},
	}
	for _, write := range writes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := write(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := &models.GenerationMetadata{
		GenerationTimestamp: g.now(),
		RecordCounts: map[string]int{
			models.TableCustomers:        len(d.Customers),
			models.TableProducts:         len(d.Products),
			models.TableTransactions:     len(d.Transactions),
			models.TableTransactionItems: len(d.Items),
		},
		DateRange:       models.DateRange{Start: g.cfg.StartDate, End: g.cfg.EndDate},
		Seed:            g.cfg.Seed,
		IntegrityChecks: CheckIntegrity(d),
	}
	if err := models.WriteJSON(filepath.Join(g.rawDir, MetadataFile), meta); err != nil {
		return nil, err
	}

	if !meta.IntegrityChecks.Passed() {
		g.logger.Warn("Generated dataset failed its self-check",
			zap.Any("integrity", meta.IntegrityChecks))
	}
	g.logger.Info("Data generation completed",
		zap.Int("customers", len(d.Customers)),
		zap.Int("products", len(d.Products)),
		zap.Int("transactions", len(d.Transactions)),
		zap.Int("transaction_items", len(d.Items)))
	return meta, nil
}

func (g *Generator) path(table string) string {
	return filepath.Join(g.rawDir, table+".csv")
}

// CheckIntegrity counts referential and arithmetic violations in a dataset
func CheckIntegrity(d *Dataset) models.GenerationIntegrity {
	var out models.GenerationIntegrity

	customers := make(map[string]struct{}, len(d.Customers))
	emails := make(map[string]struct{}, len(d.Customers))
	for _, c := range d.Customers {
		customers[c.CustomerID] = struct{}{}
		key := strings.ToLower(strings.TrimSpace(c.Email))
		if _, dup := emails[key]; dup {
			out.DuplicateEmails++
		}
		emails[key] = struct{}{}
	}
	products := make(map[string]struct{}, len(d.Products))
	for _, p := range d.Products {
		products[p.ProductID] = struct{}{}
	}

	sums := make(map[string]decimal.Decimal, len(d.Transactions))
	for _, t := range d.Transactions {
		if _, ok := customers[t.CustomerID]; !ok {
			out.OrphanTransactions++
		}
		sums[t.TransactionID] = decimal.Zero
	}
	for _, it := range d.Items {
		sum, ok := sums[it.TransactionID]
		if !ok {
			out.OrphanItemTransaction++
		} else {
			sums[it.TransactionID] = sum.Add(it.LineTotal)
		}
		if _, ok := products[it.ProductID]; !ok {
			out.OrphanItemProduct++
		}
		if !it.LineTotalConsistent() {
			out.LineTotalMismatches++
		}
	}
	for _, t := range d.Transactions {
		if !sums[t.TransactionID].Equal(t.TotalAmount) {
			out.TotalMismatches++
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
