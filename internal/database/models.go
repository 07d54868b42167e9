package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/google/uuid"
)

// ForecastRun is one stored pipeline run.
type ForecastRun struct {
	ID               string    `gorm:"primaryKey;column:id"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	DurationNS       int64     `gorm:"column:duration_ns"`
	RowCount         int       `gorm:"column:row_count"`
	MissingReference int       `gorm:"column:missing_reference"`
	Clamped          int       `gorm:"column:clamped"`
	Panel            []byte    `gorm:"column:panel"`
}

// TableName specifies the table name for ForecastRun
func (ForecastRun) TableName() string {
	return "forecast_runs"
}

// ForecastHour is one PowerResult of a stored run.  The reduced projection is
// kept in columns so it can be queried; the full row is kept as JSON.
type ForecastHour struct {
	RunID     string          `gorm:"column:run_id;not null"`
	Seq       int             `gorm:"column:seq;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null"`
	Year      int             `gorm:"column:year"`
	Month     int             `gorm:"column:month"`
	Day       int             `gorm:"column:day"`
	Hour      int             `gorm:"column:hour"`
	Wel       sql.NullFloat64 `gorm:"column:wel"`
	Clamped   bool            `gorm:"column:clamped"`
	Result    []byte          `gorm:"column:result"`
}

// TableName specifies the table name for ForecastHour
func (ForecastHour) TableName() string {
	return "forecast_hours"
}

// NewRecords converts a run into its stored form.
func NewRecords(run *pipeline.Run) (ForecastRun, []ForecastHour, error) {
	panel, err := json.Marshal(run.Panel)
	if err != nil {
		return ForecastRun{}, nil, fmt.Errorf("could not encode panel: %w", err)
	}

	rec := ForecastRun{
		ID:               run.ID.String(),
		CreatedAt:        run.CreatedAt.UTC(),
		DurationNS:       int64(run.Duration),
		RowCount:         run.Rows,
		MissingReference: run.MissingReference,
		Clamped:          run.Clamped,
		Panel:            panel,
	}

	hours := make([]ForecastHour, len(run.Results))
	for i, r := range run.Results {
		result, err := json.Marshal(r)
		if err != nil {
			return ForecastRun{}, nil, fmt.Errorf("could not encode row %d: %w", i, err)
		}
		hours[i] = ForecastHour{
			RunID:     rec.ID,
			Seq:       i,
			CreatedAt: rec.CreatedAt,
			Year:      r.Year,
			Month:     r.Month,
			Day:       r.Day,
			Hour:      r.Hour,
			Wel:       sql.NullFloat64{Float64: r.Wel.Float(), Valid: r.Wel.Valid()},
			Clamped:   r.Clamped,
			Result:    result,
		}
	}
	return rec, hours, nil
}

// ToRun rebuilds a run from its stored form.  hours must be ordered by Seq.
func (f ForecastRun) ToRun(hours []ForecastHour) (*pipeline.Run, error) {
	id, err := uuid.Parse(f.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", f.ID, err)
	}

	run := &pipeline.Run{
		Report: pipeline.Report{
			ID:               id,
			CreatedAt:        f.CreatedAt.UTC(),
			Duration:         time.Duration(f.DurationNS),
			Rows:             f.RowCount,
			MissingReference: f.MissingReference,
			Clamped:          f.Clamped,
		},
		Results: make([]types.PowerResult, len(hours)),
	}
	if err := json.Unmarshal(f.Panel, &run.Panel); err != nil {
		return nil, fmt.Errorf("could not decode panel of run %s: %w", f.ID, err)
	}
	for i, h := range hours {
		if err := json.Unmarshal(h.Result, &run.Results[i]); err != nil {
			return nil, fmt.Errorf("could not decode row %d of run %s: %w", h.Seq, f.ID, err)
		}
	}
	return run, nil
}
