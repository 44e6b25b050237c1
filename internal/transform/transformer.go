package transform

import (
	"context"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SummaryFile is written to the processed directory after a successful run
const SummaryFile = "transformation_summary.json"

// RulesApplied lists the transformations every run performs
var RulesApplied = []string{
	"text_normalization",
	"email_standardization",
	"phone_standardization",
	"profit_margin_calculation",
	"price_categorization",
	"missing_value_defaults",
	"business_rule_filtering",
	"schema_alignment_enforced",
}

// Dataset is the cleansed image destined for production
type Dataset struct {
	Customers    []models.Customer
	Products     []models.Product
	Transactions []models.Transaction
	Items        []models.TransactionItem
}

type tally struct {
	stats map[string]models.TableTransform
}

func (t *tally) read(table string, n int) {
	s := t.stats[table]
	s.RowsRead = n
	t.stats[table] = s
}

func (t *tally) drop(table, reason string) {
	s := t.stats[table]
	if s.DropReasons == nil {
		s.DropReasons = map[string]int{}
	}
	s.DropReasons[reason]++
	s.RowsDropped++
	t.stats[table] = s
}

// Apply cleanses staging data and filters it by the business rules. Rows that
// would break production referential integrity after filtering are dropped
// too, so every surviving row resolves its parents.
func Apply(in *store.StagingData) (*Dataset, map[string]models.TableTransform) {
	t := &tally{stats: make(map[string]models.TableTransform, 4)}
	out := &Dataset{}

	t.read(models.TableCustomers, len(in.Customers))
	customers := make(map[string]struct{}, len(in.Customers))
	for _, c := range in.Customers {
		out.Customers = append(out.Customers, CleanseCustomer(c))
		customers[c.CustomerID] = struct{}{}
	}

	t.read(models.TableProducts, len(in.Products))
	products := make(map[string]struct{}, len(in.Products))
	for _, p := range in.Products {
		if reason := ProductRejection(p); reason != "" {
			t.drop(models.TableProducts, reason)
			continue
		}
		out.Products = append(out.Products, CleanseProduct(p))
		products[p.ProductID] = struct{}{}
	}

	t.read(models.TableTransactions, len(in.Transactions))
	transactions := make(map[string]struct{}, len(in.Transactions))
	for _, txn := range in.Transactions {
		if reason := TransactionRejection(txn); reason != "" {
			t.drop(models.TableTransactions, reason)
			continue
		}
		if _, ok := customers[txn.CustomerID]; !ok {
			t.drop(models.TableTransactions, ReasonOrphanedTransactions)
			continue
		}
		out.Transactions = append(out.Transactions, txn)
		transactions[txn.TransactionID] = struct{}{}
	}

	t.read(models.TableTransactionItems, len(in.Items))
	for _, item := range in.Items {
		if reason := ItemRejection(item); reason != "" {
			t.drop(models.TableTransactionItems, reason)
			continue
		}
		_, txnOK := transactions[item.TransactionID]
		_, productOK := products[item.ProductID]
		if !txnOK || !productOK {
			t.drop(models.TableTransactionItems, ReasonOrphanedItems)
			continue
		}
		out.Items = append(out.Items, item)
	}

	return out, t.stats
}

// Transformer promotes staging data to production
type Transformer struct {
	store        *store.Store
	processedDir string
	batchSize    int
	logger       *zap.Logger
	now          func() time.Time
}

// NewTransformer creates a transformer
func NewTransformer(s *store.Store, processedDir string, batchSize int, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Transformer{
		store:        s,
		processedDir: processedDir,
		batchSize:    batchSize,
		logger:       logger,
		now:          time.Now,
	}
}

// Run reads staging, cleanses it and replaces production with the result, all
// in one transaction
func (tr *Transformer) Run(ctx context.Context) (*models.TransformationSummary, error) {
	ctx, span := util.StartSpan(ctx, "transform.Run")
	defer span.End()

	start := tr.now()
	var stats map[string]models.TableTransform

	err := tr.store.InTx(ctx, func(tx *sqlx.Tx) error {
		staged, err := store.ReadStaging(ctx, tx)
		if err != nil {
			return err
		}

		var data *Dataset
		data, stats = Apply(staged)

		if err := store.TruncateProduction(ctx, tx); err != nil {
			return err
		}

		loads := []struct {
			table string
			load  func() (int64, error)
		}{
			{models.TableCustomers, func() (int64, error) {
				return store.InsertBatches(ctx, tx, models.SchemaProduction, models.TableCustomers, models.CustomerColumns, data.Customers, tr.batchSize)
			}},
			{models.TableProducts, func() (int64, error) {
				return store.InsertBatches(ctx, tx, models.SchemaProduction, models.TableProducts, models.ProductionProductColumns, data.Products, tr.batchSize)
			}},
			{models.TableTransactions, func() (int64, error) {
				return store.InsertBatches(ctx, tx, models.SchemaProduction, models.TableTransactions, models.TransactionColumns, data.Transactions, tr.batchSize)
			}},
			{models.TableTransactionItems, func() (int64, error) {
				return store.InsertBatches(ctx, tx, models.SchemaProduction, models.TableTransactionItems, models.TransactionItemColumns, data.Items, tr.batchSize)
			}},
		}
		for _, l := range loads {
			n, err := l.load()
			if err != nil {
				return err
			}
			s := stats[l.table]
			s.RowsLoaded = int(n)
			stats[l.table] = s
		}
		return nil
	})
	if err != nil {
		tr.logger.Error("Transformation failed", zap.Error(err))
		return nil, err
	}

	summary := &models.TransformationSummary{
		TransformationTimestamp:   start,
		RecordsProcessed:          stats,
		TransformationsApplied:    RulesApplied,
		TotalExecutionTimeSeconds: util.Round2(tr.now().Sub(start).Seconds()),
	}

	for table, s := range stats {
		util.RowsLoadedTotal.WithLabelValues(models.SchemaProduction, table).Add(float64(s.RowsLoaded))
		for reason, n := range s.DropReasons {
			util.RowsDroppedTotal.WithLabelValues(table, reason).Add(float64(n))
		}
		if s.RowsDropped > 0 {
			tr.logger.Warn("Rows dropped by business rules",
				zap.String("table", table),
				zap.Int("dropped", s.RowsDropped),
				zap.Any("reasons", s.DropReasons))
		}
	}

	if err := models.WriteJSON(filepath.Join(tr.processedDir, SummaryFile), summary); err != nil {
		return summary, err
	}
	tr.logger.Info("Transformation completed", zap.Any("records", stats))
	return summary, nil
}
