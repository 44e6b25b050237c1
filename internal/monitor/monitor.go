package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"go.uber.org/zap"
)

// ReportFile is written to the processed directory
const ReportFile = "monitoring_report.json"

// Check names
const (
	CheckDataVolume    = "data_volume"
	CheckDataFreshness = "data_freshness"
	CheckLastRun       = "last_pipeline_run"
)

const (
	statusOK = "ok"

	penaltyNoData    = 40
	penaltyStale     = 20
	penaltyFailedRun = 30
)

// Observation is the raw state the checks are evaluated against
type Observation struct {
	FactCount  int64
	LatestFact time.Time
	HasLatest  bool
	LastRun    *models.ExecutionReport
}

// Evaluate turns an observation into a monitoring report
func Evaluate(obs Observation, now time.Time, freshness time.Duration) *models.MonitoringReport {
	report := &models.MonitoringReport{
		MonitoringTimestamp: now,
		PipelineHealth:      models.HealthHealthy,
		Checks:              make(map[string]models.HealthCheck, 3),
		Alerts:              []models.Alert{},
		OverallHealthScore:  100,
	}
	alert := func(severity, check, msg string, penalty int) {
		report.Alerts = append(report.Alerts, models.Alert{
			Severity:  severity,
			Check:     check,
			Message:   msg,
			Timestamp: now,
		})
		report.OverallHealthScore -= penalty
		report.PipelineHealth = worse(report.PipelineHealth, severity)
	}

	count := obs.FactCount
	volume := models.HealthCheck{Status: statusOK, ActualCount: &count}
	if count == 0 {
		volume.Status = models.HealthCritical
		alert(models.SeverityCritical, CheckDataVolume, "No records found in warehouse.fact_sales", penaltyNoData)
	}
	report.Checks[CheckDataVolume] = volume

	fresh := models.HealthCheck{Status: statusOK}
	switch {
	case !obs.HasLatest:
		fresh.Status = models.HealthWarning
		fresh.Message = "warehouse.fact_sales has no load timestamp"
		report.PipelineHealth = worse(report.PipelineHealth, models.HealthWarning)
	default:
		age := now.Sub(obs.LatestFact)
		fresh.LatestRecord = obs.LatestFact.Format(time.RFC3339)
		fresh.AgeHours = util.Round2(age.Hours())
		if freshness > 0 && age > freshness {
			fresh.Status = models.HealthWarning
			alert(models.SeverityWarning, CheckDataFreshness,
				fmt.Sprintf("Warehouse data is %.1f hours old (threshold %s)", age.Hours(), freshness), penaltyStale)
		}
	}
	report.Checks[CheckDataFreshness] = fresh

	run := models.HealthCheck{Status: statusOK}
	switch {
	case obs.LastRun == nil:
		run.Status = models.HealthWarning
		run.Message = "no pipeline execution report found"
	case obs.LastRun.Status == models.RunFailed:
		run.Status = models.HealthCritical
		run.LastRunID = obs.LastRun.PipelineExecutionID
		run.LastRunStatus = obs.LastRun.Status
		msg := fmt.Sprintf("Pipeline run %s failed", obs.LastRun.PipelineExecutionID)
		if len(obs.LastRun.Errors) > 0 {
			msg += ": " + obs.LastRun.Errors[0]
		}
		alert(models.SeverityCritical, CheckLastRun, msg, penaltyFailedRun)
	default:
		run.LastRunID = obs.LastRun.PipelineExecutionID
		run.LastRunStatus = obs.LastRun.Status
	}
	report.Checks[CheckLastRun] = run

	if report.OverallHealthScore < 0 {
		report.OverallHealthScore = 0
	}
	return report
}

func worse(current, candidate string) string {
	rank := map[string]int{models.HealthHealthy: 0, models.HealthWarning: 1, models.HealthCritical: 2}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}

// Monitor polls warehouse health and the latest execution report
type Monitor struct {
	store        *store.Store
	processedDir string
	freshness    time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a monitor
func New(s *store.Store, processedDir string, freshness time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Monitor{
		store:        s,
		processedDir: processedDir,
		freshness:    freshness,
		logger:       logger,
		now:          time.Now,
	}
}

// Check observes the warehouse, evaluates every check, raises alerts and
// writes the monitoring report
func (m *Monitor) Check(ctx context.Context) (*models.MonitoringReport, error) {
	ctx, span := util.StartSpan(ctx, "monitor.Check")
	defer span.End()

	var obs Observation
	var err error
	db := m.store.GetDB()
	if obs.FactCount, err = store.FactSalesCount(ctx, db); err != nil {
		return nil, err
	}
	if obs.LatestFact, obs.HasLatest, err = store.LatestFactCreatedAt(ctx, db); err != nil {
		return nil, err
	}

	var last models.ExecutionReport
	switch err := models.ReadJSON(filepath.Join(m.processedDir, models.ExecutionReportFile), &last); {
	case err == nil:
		obs.LastRun = &last
	case errors.Is(err, os.ErrNotExist):
	default:
		m.logger.Warn("Unreadable pipeline execution report", zap.Error(err))
	}

	report := Evaluate(obs, m.now(), m.freshness)
	for _, a := range report.Alerts {
		RaiseAlert(m.logger, a)
	}
	util.PipelineHealthScore.Set(float64(report.OverallHealthScore))

	if err := models.WriteJSON(filepath.Join(m.processedDir, ReportFile), report); err != nil {
		return report, err
	}
	m.logger.Info("Monitoring completed",
		zap.String("health", report.PipelineHealth),
		zap.Int("score", report.OverallHealthScore))
	return report, nil
}

// RaiseAlert logs an alert at its severity and counts it
func RaiseAlert(logger *zap.Logger, a models.Alert) {
	util.AlertsRaisedTotal.WithLabelValues(a.Severity, a.Check).Inc()
	fields := []zap.Field{zap.String("check", a.Check), zap.String("severity", a.Severity)}
	if a.Severity == models.SeverityCritical {
		logger.Error(a.Message, fields...)
		return
	}
	logger.Warn(a.Message, fields...)
}
