package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hurttlocker/gavel/internal/store"
)

// ExportCases writes the case collection to a timestamped file in the raw
// data directory and returns its path. Supported formats: "json", "csv".
func (f *Files) ExportCases(cases []*store.Case, format string) (string, error) {
	ts := time.Now().UTC().Format(TimestampLayout)

	switch format {
	case "json":
		path := filepath.Join(f.rawDir, "cases_"+ts+".json")
		data, err := json.MarshalIndent(cases, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling cases: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, nil

	case "csv":
		path := filepath.Join(f.rawDir, "cases_"+ts+".csv")
		if err := writeCasesCSV(path, cases); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, nil

	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func writeCasesCSV(path string, cases []*store.Case) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	header := []string{"id", "case_number", "title", "description", "plaintiff",
		"defendant", "case_type", "verdict", "confidence_score", "created_at"}
	if err := w.Write(header); err != nil {
		file.Close()
		return err
	}

	for _, c := range cases {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.CaseNumber,
			c.Title,
			c.Description,
			c.Plaintiff,
			c.Defendant,
			c.CaseType,
			string(c.Verdict),
			strconv.FormatFloat(c.ConfidenceScore, 'f', -1, 64),
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			file.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
