package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"distress-detector/internal/scoring"
	"distress-detector/internal/service"
	"distress-detector/internal/storage"
)

// Skip reasons reported per row.
const (
	ReasonMissing      = "missing"
	ReasonInvalidPrice = "invalid_price"
	ReasonFailed       = "failed"
)

var requiredColumns = []string{"title", "location", "price"}

// headerAliases maps messy spreadsheet headers onto canonical column names.
var headerAliases = map[string]string{
	"price (kes)":    "price",
	"distress score": "distress_score",
}

// Creator persists one listing through the scoring path.
type Creator interface {
	Create(ctx context.Context, in service.ListingInput) (storage.Listing, error)
}

// DuplicateChecker reports whether a listing is already stored.
type DuplicateChecker interface {
	ListingExists(ctx context.Context, title, location string) (bool, error)
}

// RowOutcome records what happened to a single data row (1-based).
type RowOutcome struct {
	Row       int
	ListingID int64
	Imported  bool
	Duplicate bool
	Reason    string
	Detail    string
}

// Result tallies an import run.
type Result struct {
	Total      int
	Imported   int
	Skipped    int
	Duplicates int
	Rows       []RowOutcome
}

// Options tune the importer.
type Options struct {
	// ProgressEvery logs a progress line after this many rows; 0 disables it.
	ProgressEvery int
	DryRun        bool
}

// Importer loads listings from CSV.
type Importer struct {
	creator Creator
	dupes   DuplicateChecker
	opts    Options
	logger  zerolog.Logger
}

// New constructs an Importer. dupes may be nil to disable duplicate checks.
func New(opts Options, creator Creator, dupes DuplicateChecker, logger zerolog.Logger) *Importer {
	return &Importer{
		creator: creator,
		dupes:   dupes,
		opts:    opts,
		logger:  logger.With().Str("component", "importer").Logger(),
	}
}

// Import reads every row from r. Bad rows are skipped and reported; only an
// unreadable header or a malformed CSV stream aborts the run.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var result Result

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return result, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return result, fmt.Errorf("read csv header: %w", err)
	}
	columns := normaliseHeader(header)
	im.logger.Debug().Strs("columns", header).Msg("headers normalised")
	if missing := missingColumns(columns); len(missing) > 0 {
		return result, fmt.Errorf("csv header missing required columns: %s", strings.Join(missing, ", "))
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return result, fmt.Errorf("read csv row %d: %w", result.Total+1, readErr)
		}

		result.Total++
		outcome := im.importRow(ctx, result.Total, rowValues(columns, record))
		switch {
		case outcome.Imported:
			result.Imported++
		case outcome.Duplicate:
			result.Duplicates++
		default:
			result.Skipped++
		}
		result.Rows = append(result.Rows, outcome)

		if im.opts.ProgressEvery > 0 && result.Total%im.opts.ProgressEvery == 0 {
			im.logger.Info().
				Int("rows", result.Total).
				Int("imported", result.Imported).
				Msg("导入进行中")
		}
	}

	im.logger.Info().
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("duplicates", result.Duplicates).
		Bool("dry_run", im.opts.DryRun).
		Msg("import complete")
	return result, nil
}

func (im *Importer) importRow(ctx context.Context, n int, row map[string]string) RowOutcome {
	outcome := RowOutcome{Row: n}
	log := im.logger.With().Int("row", n).Logger()

	var missing []string
	for _, col := range requiredColumns {
		if row[col] == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		outcome.Reason = ReasonMissing
		outcome.Detail = strings.Join(missing, ", ")
		log.Warn().Strs("missing", missing).Msg("row skipped")
		return outcome
	}

	price, err := scoring.ParseAmount(row["price"])
	if err != nil {
		outcome.Reason = ReasonInvalidPrice
		outcome.Detail = err.Error()
		log.Warn().Err(err).Msg("row skipped")
		return outcome
	}

	if im.dupes != nil {
		exists, err := im.dupes.ListingExists(ctx, row["title"], row["location"])
		if err != nil {
			outcome.Reason = ReasonFailed
			outcome.Detail = err.Error()
			log.Error().Err(err).Msg("duplicate check failed")
			return outcome
		}
		if exists {
			outcome.Duplicate = true
			log.Info().Str("title", row["title"]).Str("location", row["location"]).Msg("duplicate skipped")
			return outcome
		}
	}

	if im.opts.DryRun {
		outcome.Imported = true
		return outcome
	}

	created, err := im.creator.Create(ctx, service.ListingInput{
		Title:       row["title"],
		Description: row["description"],
		Location:    row["location"],
		Price:       price,
		Source:      storage.SourceCSV,
	})
	if err != nil {
		outcome.Reason = ReasonFailed
		outcome.Detail = err.Error()
		log.Error().Err(err).Msg("row skipped: error saving")
		return outcome
	}

	outcome.Imported = true
	outcome.ListingID = created.ID
	return outcome
}

func normaliseHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToLower(strings.TrimSpace(h))
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		columns[i] = h
	}
	return columns
}

func missingColumns(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// rowValues keys a record by normalised column name. Scores supplied in the
// file land under distress_score and are ignored.
func rowValues(columns, record []string) map[string]string {
	row := make(map[string]string, len(columns))
	for i, col := range columns {
		if i >= len(record) {
			break
		}
		row[col] = strings.TrimSpace(record[i])
	}
	return row
}
