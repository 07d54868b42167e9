// Package reference loads the static solar-geometry lookup tables that the
// pipeline joins onto every weather row.
package reference

import (
	"fmt"
	"os"
	"sort"

	"github.com/chrissnell/pvforecast/internal/types"
	"github.com/chrissnell/pvforecast/pkg/csvtable"
)

// Column sets the loader requires.
var (
	AstronomicalColumns = []string{"MO", "DY", "HR", "SZA", "ALB", "NDAY", "delta", "sina", "beta", "y"}
	HourAngleColumns    = []string{"HR", "w"}
)

// Tables is an immutable, indexed pair of reference tables.
type Tables struct {
	astronomical map[types.CalendarKey]types.AstronomicalRecord
	hourAngles   map[int]types.HourAngleRecord
}

// NewTables indexes the records.  A key that appears twice makes the join
// ambiguous, so it is reported as corrupt reference data.
func NewTables(astronomical []types.AstronomicalRecord, hourAngles []types.HourAngleRecord) (*Tables, error) {
	t := &Tables{
		astronomical: make(map[types.CalendarKey]types.AstronomicalRecord, len(astronomical)),
		hourAngles:   make(map[int]types.HourAngleRecord, len(hourAngles)),
	}
	for _, rec := range astronomical {
		if _, dup := t.astronomical[rec.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate astronomical key %+v", types.ErrReferenceDataMissing, rec.Key())
		}
		t.astronomical[rec.Key()] = rec
	}
	for _, rec := range hourAngles {
		if _, dup := t.hourAngles[rec.Hour]; dup {
			return nil, fmt.Errorf("%w: duplicate hour angle for hour %d", types.ErrReferenceDataMissing, rec.Hour)
		}
		t.hourAngles[rec.Hour] = rec
	}
	return t, nil
}

// Astronomical looks up the record for key.
func (t *Tables) Astronomical(key types.CalendarKey) (types.AstronomicalRecord, bool) {
	rec, ok := t.astronomical[key]
	return rec, ok
}

// HourAngle looks up the record for a clock hour.
func (t *Tables) HourAngle(hour int) (types.HourAngleRecord, bool) {
	rec, ok := t.hourAngles[hour]
	return rec, ok
}

// Len returns the number of astronomical and hour-angle records.
func (t *Tables) Len() (astronomical, hourAngles int) {
	return len(t.astronomical), len(t.hourAngles)
}

// AstronomicalRecords returns the astronomical table sorted by key.
func (t *Tables) AstronomicalRecords() []types.AstronomicalRecord {
	recs := make([]types.AstronomicalRecord, 0, len(t.astronomical))
	for _, rec := range t.astronomical {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Hour < b.Hour
	})
	return recs
}

// HourAngleRecords returns the hour-angle table sorted by hour.
func (t *Tables) HourAngleRecords() []types.HourAngleRecord {
	recs := make([]types.HourAngleRecord, 0, len(t.hourAngles))
	for _, rec := range t.hourAngles {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Hour < recs[j].Hour })
	return recs
}

// Load reads both tables from CSV files.  Any failure to open or parse either
// file is ErrReferenceDataMissing.
func Load(astronomicalPath, hourAnglePath string) (*Tables, error) {
	var astronomical []types.AstronomicalRecord
	if err := readFile(astronomicalPath, &astronomical, AstronomicalColumns); err != nil {
		return nil, err
	}
	var hourAngles []types.HourAngleRecord
	if err := readFile(hourAnglePath, &hourAngles, HourAngleColumns); err != nil {
		return nil, err
	}
	return NewTables(astronomical, hourAngles)
}

func readFile(path string, out interface{}, columns []string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrReferenceDataMissing, err)
	}
	defer f.Close()

	if err := csvtable.Decode(f, out, columns...); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrReferenceDataMissing, path, err)
	}
	return nil
}
