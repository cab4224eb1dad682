package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/gavel/internal/model"
)

// ErrNoTrainingData marks a load with no split files on disk.
var ErrNoTrainingData = errors.New("no training data found")

// csvHeader is the column layout of split files: the derived training
// columns first, then the original case fields.
var csvHeader = []string{
	"processed_text", "label", "case_number", "title", "description",
	"plaintiff", "defendant", "case_type", "verdict", "confidence_score",
	"created_at",
}

// Files manages the on-disk dataset layout: raw case exports under
// <dataDir>/raw and split files under <dataDir>/processed.
type Files struct {
	rawDir       string
	processedDir string
}

// NewFiles creates the dataset directory layout under dataDir.
func NewFiles(dataDir string) (*Files, error) {
	f := &Files{
		rawDir:       filepath.Join(dataDir, "raw"),
		processedDir: filepath.Join(dataDir, "processed"),
	}
	for _, dir := range []string{f.rawDir, f.processedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return f, nil
}

// SaveSplit persists both partitions under the split's shared timestamp.
// The pair is written atomically: both files appear, or neither does.
func (f *Files) SaveSplit(split *Split) (trainPath, valPath string, err error) {
	ts := split.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(TimestampLayout)
		split.Timestamp = ts
	}

	trainPath = filepath.Join(f.processedDir, "train_"+ts+".csv")
	valPath = filepath.Join(f.processedDir, "val_"+ts+".csv")

	trainTmp := trainPath + ".tmp"
	valTmp := valPath + ".tmp"

	if err := writeSamplesCSV(trainTmp, split.Train); err != nil {
		return "", "", fmt.Errorf("writing train partition: %w", err)
	}
	if err := writeSamplesCSV(valTmp, split.Validation); err != nil {
		os.Remove(trainTmp)
		return "", "", fmt.Errorf("writing validation partition: %w", err)
	}

	if err := os.Rename(trainTmp, trainPath); err != nil {
		os.Remove(trainTmp)
		os.Remove(valTmp)
		return "", "", fmt.Errorf("publishing train partition: %w", err)
	}
	if err := os.Rename(valTmp, valPath); err != nil {
		os.Remove(trainPath)
		os.Remove(valTmp)
		return "", "", fmt.Errorf("publishing validation partition: %w", err)
	}

	return trainPath, valPath, nil
}

// LoadSplit reads the split tagged with timestamp, or the most recent one
// (lexically greatest timestamp) when timestamp is empty.
func (f *Files) LoadSplit(timestamp string) (*Split, error) {
	if timestamp == "" {
		latest, err := f.latestTimestamp()
		if err != nil {
			return nil, err
		}
		timestamp = latest
	}

	train, err := readSamplesCSV(filepath.Join(f.processedDir, "train_"+timestamp+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: timestamp %s", ErrNoTrainingData, timestamp)
		}
		return nil, fmt.Errorf("reading train partition: %w", err)
	}
	val, err := readSamplesCSV(filepath.Join(f.processedDir, "val_"+timestamp+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: timestamp %s", ErrNoTrainingData, timestamp)
		}
		return nil, fmt.Errorf("reading validation partition: %w", err)
	}

	return &Split{Timestamp: timestamp, Train: train, Validation: val}, nil
}

// Timestamps lists available split timestamps in ascending order.
func (f *Files) Timestamps() ([]string, error) {
	entries, err := os.ReadDir(f.processedDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.processedDir, err)
	}

	var timestamps []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "train_") && strings.HasSuffix(name, ".csv") {
			timestamps = append(timestamps, strings.TrimSuffix(strings.TrimPrefix(name, "train_"), ".csv"))
		}
	}
	sort.Strings(timestamps)
	return timestamps, nil
}

func (f *Files) latestTimestamp() (string, error) {
	timestamps, err := f.Timestamps()
	if err != nil {
		return "", err
	}
	if len(timestamps) == 0 {
		return "", ErrNoTrainingData
	}
	return timestamps[len(timestamps)-1], nil
}

func writeSamplesCSV(path string, samples []Sample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		file.Close()
		return err
	}

	for _, s := range samples {
		row := []string{
			s.ProcessedText,
			strconv.Itoa(s.Label),
			s.CaseNumber,
			s.Title,
			s.Description,
			s.Plaintiff,
			s.Defendant,
			s.CaseType,
			string(s.Verdict),
			strconv.FormatFloat(s.ConfidenceScore, 'f', -1, 64),
			s.CreatedAt.UTC().Format(time.RFC3339),
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

func readSamplesCSV(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var samples []Sample
	for i, row := range records[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d columns, got %d", path, i+1, len(csvHeader), len(row))
		}

		label, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad label %q", path, i+1, row[1])
		}
		verdict, err := model.ParseVerdict(row[8])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad verdict %q", path, i+1, row[8])
		}
		confidence, err := strconv.ParseFloat(row[9], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad confidence %q", path, i+1, row[9])
		}
		createdAt, err := time.Parse(time.RFC3339, row[10])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad timestamp %q", path, i+1, row[10])
		}

		samples = append(samples, Sample{
			ProcessedText:   row[0],
			Label:           label,
			CaseNumber:      row[2],
			Title:           row[3],
			Description:     row[4],
			Plaintiff:       row[5],
			Defendant:       row[6],
			CaseType:        row[7],
			Verdict:         verdict,
			ConfidenceScore: confidence,
			CreatedAt:       createdAt,
		})
	}
	return samples, nil
}
