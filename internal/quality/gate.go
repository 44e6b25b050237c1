package quality

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"go.uber.org/zap"
)

// ReportFile is written to the staging directory
const ReportFile = "quality_report.json"

// Check categories and their weights; the weights sum to 100
const (
	CheckNulls       = "null_checks"
	CheckDuplicates  = "duplicate_checks"
	CheckReferential = "referential_integrity"
	CheckConsistency = "data_consistency"

	WeightNulls       = 30
	WeightDuplicates  = 20
	WeightReferential = 30
	WeightConsistency = 20
)

const (
	statusPassed = "passed"
	statusFailed = "failed"
)

// CategoryScore is weight * max(0, 1 - violations/total), rounded to 2 places.
// An empty scope passes vacuously with the full weight.
func CategoryScore(violations, total int64, weight float64) float64 {
	if total == 0 {
		return weight
	}
	ratio := 1 - float64(violations)/float64(total)
	return util.Round2(math.Max(0, ratio) * weight)
}

// Grade maps a 0-100 score to a letter
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func check(violations, total int64, weight float64, detail string) models.QualityCheck {
	status := statusPassed
	if violations > 0 {
		status = statusFailed
	}
	return models.QualityCheck{
		Status:       status,
		Violations:   violations,
		TotalRecords: total,
		Weight:       weight,
		Score:        CategoryScore(violations, total, weight),
		Details:      map[string]int64{detail: violations},
	}
}

// Score turns raw counts into scored checks, the overall score and the grade
func Score(c store.QualityCounts) (map[string]models.QualityCheck, float64, string) {
	checks := map[string]models.QualityCheck{
		CheckNulls:       check(c.NullProducts, c.Products, WeightNulls, "production.products"),
		CheckDuplicates:  check(c.DuplicateEmails, c.Customers, WeightDuplicates, "duplicate_emails"),
		CheckReferential: check(c.OrphanItems, c.Items, WeightReferential, "transaction_items.transaction_id"),
		CheckConsistency: check(c.LineTotalMismatch, c.Items, WeightConsistency, "line_total_mismatch"),
	}

	var total float64
	for _, name := range []string{CheckNulls, CheckDuplicates, CheckReferential, CheckConsistency} {
		total += checks[name].Score
	}
	total = util.Round2(total)
	return checks, total, Grade(total)
}

// Gate scores production data. It only reports; it never fails a run on a low score.
type Gate struct {
	store     *store.Store
	reportDir string
	logger    *zap.Logger
	now       func() time.Time
}

// NewGate creates a quality gate writing its report to reportDir
func NewGate(s *store.Store, reportDir string, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Gate{store: s, reportDir: reportDir, logger: logger, now: time.Now}
}

// Run executes every check and writes the graded report
func (g *Gate) Run(ctx context.Context) (*models.QualityReport, error) {
	ctx, span := util.StartSpan(ctx, "quality.Run")
	defer span.End()

	counts, err := store.ReadQualityCounts(ctx, g.store.GetDB())
	if err != nil {
		return nil, err
	}

	checks, score, grade := Score(counts)
	report := &models.QualityReport{
		CheckTimestamp:      g.now(),
		ChecksPerformed:     checks,
		OverallQualityScore: score,
		QualityGrade:        grade,
	}
	util.QualityScore.Set(score)

	if err := models.WriteJSON(filepath.Join(g.reportDir, ReportFile), report); err != nil {
		return report, err
	}

	fields := []zap.Field{zap.Float64("score", score), zap.String("grade", grade)}
	for name, c := range checks {
		if c.Status == statusFailed {
			fields = append(fields, zap.Int64(name, c.Violations))
		}
	}
	g.logger.Info("Data quality validation completed", fields...)
	return report, nil
}
