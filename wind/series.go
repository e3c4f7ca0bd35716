package wind

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// ErrOutOfRange reports a requested time outside a Series' coverage.
var ErrOutOfRange = errors.New("wind: time outside series range")

// Timestamp wraps time.Time for CSV (un)marshaling in RFC 3339.
type Timestamp struct {
	time.Time
}

// UnmarshalCSV implements gocsv unmarshaling.
func (t *Timestamp) UnmarshalCSV(s string) error {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalCSV implements gocsv marshaling.
func (t Timestamp) MarshalCSV() (string, error) {
	return t.Format(time.RFC3339), nil
}

// Record is one timestamped wind observation.
type Record struct {
	Time Timestamp `csv:"time"`
	U    float64   `csv:"u"`
	V    float64   `csv:"v"`
}

// Series is a Provider interpolating linearly between time-ordered
// records. Times outside the records' span are an error rather than an
// extrapolation.
type Series struct {
	records []Record
}

// NewSeries builds a Series from records, sorting them by time.
func NewSeries(records []Record) (*Series, error) {
	if len(records) == 0 {
		return nil, errors.New("wind: series needs at least one record")
	}
	rs := make([]Record, len(records))
	copy(rs, records)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Time.Before(rs[j].Time.Time) })
	return &Series{records: rs}, nil
}

// Value implements Provider.
func (s *Series) Value(t time.Time) (Vector, error) {
	first := s.records[0]
	last := s.records[len(s.records)-1]
	if t.Before(first.Time.Time) || t.After(last.Time.Time) {
		return Vector{}, fmt.Errorf("%w: %s", ErrOutOfRange, t.Format(time.RFC3339))
	}

	// First record not before t.
	i := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Time.Before(t)
	})
	r1 := s.records[i]
	if i == 0 || r1.Time.Equal(t) {
		return Vector{U: r1.U, V: r1.V}, nil
	}

	r0 := s.records[i-1]
	span := r1.Time.Sub(r0.Time.Time).Seconds()
	if span <= 0 {
		return Vector{U: r1.U, V: r1.V}, nil
	}
	frac := t.Sub(r0.Time.Time).Seconds() / span
	return Vector{
		U: r0.U + (r1.U-r0.U)*frac,
		V: r0.V + (r1.V-r0.V)*frac,
	}, nil
}

// LoadSeriesCSV reads a wind time series from a CSV file with columns
// time (RFC 3339), u, v.
func LoadSeriesCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wind series: %w", err)
	}
	defer f.Close()

	var records []Record
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("parsing wind series: %w", err)
	}
	return NewSeries(records)
}
