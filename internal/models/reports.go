package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Step statuses
const (
	StepPending = "pending"
	StepRunning = "running"
	StepSuccess = "success"
	StepFailed  = "failed"
)

// Run statuses
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

// GenerationMetadata describes one generator run
type GenerationMetadata struct {
	GenerationTimestamp time.Time           `json:"generation_timestamp"`
	RecordCounts        map[string]int      `json:"record_counts"`
	DateRange           DateRange           `json:"date_range"`
	Seed                int64               `json:"seed"`
	IntegrityChecks     GenerationIntegrity `json:"integrity_checks"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GenerationIntegrity holds the generator's self-check counts; all zero on a sound dataset
type GenerationIntegrity struct {
	OrphanTransactions    int `json:"orphan_transactions"`
	OrphanItemTransaction int `json:"orphan_items_transaction"`
	OrphanItemProduct     int `json:"orphan_items_product"`
	TotalMismatches       int `json:"total_amount_mismatches"`
	LineTotalMismatches   int `json:"line_total_mismatches"`
	DuplicateEmails       int `json:"duplicate_emails"`
}

// Passed reports whether every self-check found nothing
func (g GenerationIntegrity) Passed() bool {
	return g == GenerationIntegrity{}
}

// TableLoad is the per-table outcome of a staging load
type TableLoad struct {
	RowsLoaded int64  `json:"rows_loaded"`
	Status     string `json:"status"`
}

// IngestionSummary is written after every staging load attempt
type IngestionSummary struct {
	IngestionTimestamp        time.Time            `json:"ingestion_timestamp"`
	Status                    string               `json:"status"`
	TablesLoaded              map[string]TableLoad `json:"tables_loaded"`
	TotalExecutionTimeSeconds float64              `json:"total_execution_time_seconds"`
	Error                     string               `json:"error,omitempty"`
}

// QualityCheck is the outcome of one scored check category
type QualityCheck struct {
	Status       string           `json:"status"`
	Violations   int64            `json:"violations"`
	TotalRecords int64            `json:"total_records"`
	Weight       float64          `json:"weight"`
	Score        float64          `json:"score"`
	Details      map[string]int64 `json:"details"`
}

// QualityReport is the graded outcome of the quality gate
type QualityReport struct {
	CheckTimestamp      time.Time               `json:"check_timestamp"`
	ChecksPerformed     map[string]QualityCheck `json:"checks_performed"`
	OverallQualityScore float64                 `json:"overall_quality_score"`
	QualityGrade        string                  `json:"quality_grade"`
}

// TableTransform is the per-table outcome of the transformer
type TableTransform struct {
	RowsRead    int            `json:"rows_read"`
	RowsLoaded  int            `json:"rows_loaded"`
	RowsDropped int            `json:"rows_dropped"`
	DropReasons map[string]int `json:"drop_reasons,omitempty"`
}

// TransformationSummary is written after a successful promotion to production
type TransformationSummary struct {
	TransformationTimestamp   time.Time                 `json:"transformation_timestamp"`
	RecordsProcessed          map[string]TableTransform `json:"records_processed"`
	TransformationsApplied    []string                  `json:"transformations_applied"`
	TotalExecutionTimeSeconds float64                   `json:"total_execution_time_seconds"`
}

// WarehouseSummary is written after a successful warehouse rebuild
type WarehouseSummary struct {
	LoadTimestamp             time.Time        `json:"load_timestamp"`
	TablesLoaded              map[string]int64 `json:"tables_loaded"`
	SourceItems               int64            `json:"source_items"`
	FactRowsExcluded          int64            `json:"fact_rows_excluded"`
	TotalExecutionTimeSeconds float64          `json:"total_execution_time_seconds"`
}

// QueryResult records one exported analytical query
type QueryResult struct {
	Name            string  `json:"name"`
	Output          string  `json:"output"`
	Rows            int     `json:"rows"`
	Columns         int     `json:"columns"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// AnalyticsSummary lists the queries in execution order
type AnalyticsSummary struct {
	GenerationTimestamp       time.Time     `json:"generation_timestamp"`
	QueriesExecuted           int           `json:"queries_executed"`
	QueryResults              []QueryResult `json:"query_results"`
	TotalExecutionTimeSeconds float64       `json:"total_execution_time_seconds"`
}

// AttemptRecord is one try of a step
type AttemptRecord struct {
	Attempt         int     `json:"attempt"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// StepResult is the terminal (or current) state of one orchestrated step
type StepResult struct {
	Name            string          `json:"-"`
	Status          string          `json:"status"`
	DurationSeconds float64         `json:"duration_seconds"`
	RetryAttempts   int             `json:"retry_attempts"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Attempts        []AttemptRecord `json:"attempts"`
}

// StepResults keeps steps in execution order and encodes as a JSON object keyed by step name
type StepResults []StepResult

func (s StepResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *StepResults) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("steps_executed: expected object, got %v", tok)
	}
	out := StepResults{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var r StepResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("steps_executed.%s: %w", name, err)
		}
		r.Name = name
		out = append(out, r)
	}
	*s = out
	return nil
}

// ExecutionReportFile is the execution report name under the processed directory
const ExecutionReportFile = "pipeline_execution_report.json"

// ExecutionReport is the persisted outcome of one orchestrator run
type ExecutionReport struct {
	PipelineExecutionID  string      `json:"pipeline_execution_id"`
	StartTime            time.Time   `json:"start_time"`
	EndTime              *time.Time  `json:"end_time,omitempty"`
	Status               string      `json:"status"`
	StepsExecuted        StepResults `json:"steps_executed"`
	Errors               []string    `json:"errors"`
	Warnings             []string    `json:"warnings"`
	TotalDurationSeconds float64     `json:"total_duration_seconds"`
}

// Step returns the result recorded for name
func (r *ExecutionReport) Step(name string) (StepResult, bool) {
	for _, s := range r.StepsExecuted {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Health states of the monitor
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Alert severities
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// HealthCheck is the outcome of one monitor check
type HealthCheck struct {
	Status        string  `json:"status"`
	ActualCount   *int64  `json:"actual_count,omitempty"`
	LatestRecord  string  `json:"warehouse_latest_record,omitempty"`
	AgeHours      float64 `json:"age_hours,omitempty"`
	LastRunID     string  `json:"last_run_id,omitempty"`
	LastRunStatus string  `json:"last_run_status,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Alert is raised by the monitor or the event worker
type Alert struct {
	Severity  string    `json:"severity"`
	Check     string    `json:"check"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MonitoringReport is the outcome of one health poll
type MonitoringReport struct {
	MonitoringTimestamp time.Time              `json:"monitoring_timestamp"`
	PipelineHealth      string                 `json:"pipeline_health"`
	Checks              map[string]HealthCheck `json:"checks"`
	Alerts              []Alert                `json:"alerts"`
	OverallHealthScore  int                    `json:"overall_health_score"`
}

// WriteJSON writes v as indented JSON, creating parent directories.
// The document is written to a temporary file and renamed into place.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadJSON decodes the document at path into v
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
