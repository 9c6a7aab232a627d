package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// CSV writes each run into its own directory under dir, one file per record
// kind.
type CSV struct {
	dir string
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSV{dir: dir}, nil
}

// RunDir is the directory a run's files are written to.
func (j *CSV) RunDir(runID string) string {
	return filepath.Join(j.dir, runID)
}

func (j *CSV) Write(r Report) error {
	r.Stamp()
	if r.Run.RunID == "" {
		return fmt.Errorf("journal: run id is required")
	}
	dir := j.RunDir(r.Run.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name string
		rows any
	}{
		{"run.csv", []*Run{&r.Run}},
		{"transactions.csv", &r.Transactions},
		{"positions.csv", &r.Positions},
		{"fills.csv", &r.Fills},
		{"margins.csv", &r.Margins},
		{"equity.csv", &r.Equity},
		{"studies.csv", &r.Studies},
	}
	for _, f := range files {
		if err := writeCSV(filepath.Join(dir, f.name), f.rows); err != nil {
			return fmt.Errorf("journal run %s: %w", r.Run.RunID, err)
		}
	}
	return nil
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadEquity loads the equity curve a CSV journal wrote for runID.
func (j *CSV) ReadEquity(runID string) ([]EquityRecord, error) {
	f, err := os.Open(filepath.Join(j.RunDir(runID), "equity.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []EquityRecord
	if err := gocsv.UnmarshalFile(f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *CSV) Close() error { return nil }
