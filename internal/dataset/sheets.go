package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"prepcli/internal/config"
	apperrors "prepcli/internal/errors"
)

// SheetsLoader pulls ranges from Google Sheets spreadsheets and converts
// them into datasets. The service is created lazily on first use so the
// loader can be constructed before credentials are available.
type SheetsLoader struct {
	cfg     config.SheetsConfig
	loader  *Loader
	logger  *slog.Logger
	service *sheets.Service
}

// NewSheetsLoader creates a spreadsheet loader backed by the given file loader.
func NewSheetsLoader(cfg config.SheetsConfig, loader *Loader, logger *slog.Logger) *SheetsLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsLoader{
		cfg:    cfg,
		loader: loader,
		logger: logger.With(slog.String("component", "sheets_loader")),
	}
}

// Load fetches the given range from a spreadsheet and builds a dataset
// from it. The range uses A1 notation, for example "Sheet1!A1:F200".
func (s *SheetsLoader) Load(ctx context.Context, spreadsheetID, readRange string) (*Dataset, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.NewConfigError("google sheets loading is disabled", nil)
	}
	if spreadsheetID == "" || readRange == "" {
		return nil, apperrors.NewAppValidationError("spreadsheet id and range are required")
	}

	svc, err := s.ensureService(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewLoadError("failed to fetch spreadsheet range", err).
			WithContext("spreadsheet_id", spreadsheetID).
			WithContext("range", readRange)
	}
	if len(resp.Values) == 0 {
		return nil, apperrors.NewParsingError("spreadsheet range is empty", nil).
			WithContext("spreadsheet_id", spreadsheetID).
			WithContext("range", readRange)
	}

	records := recordsFromValues(resp.Values)

	ds, err := s.loader.LoadRecords(spreadsheetID, records)
	if err != nil {
		return nil, err
	}
	ds.Source = fmt.Sprintf("gsheet://%s/%s", spreadsheetID, readRange)
	ds.Format = FormatSheet

	s.logger.InfoContext(ctx, "spreadsheet range loaded",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", readRange),
		slog.Int("rows", ds.Rows()),
		slog.Int("cols", ds.Cols()))

	return ds, nil
}

func (s *SheetsLoader) ensureService(ctx context.Context) (*sheets.Service, error) {
	if s.service != nil {
		return s.service, nil
	}

	var opts []option.ClientOption
	switch {
	case s.cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(s.cfg.APIKey))
	case s.cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(s.cfg.CredentialsFile))
	default:
		return nil, apperrors.NewConfigError("no google sheets credentials configured", nil)
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create sheets service", err)
	}
	s.service = svc
	return svc, nil
}

// recordsFromValues converts the untyped spreadsheet cells into string
// records, padding ragged rows to the header width.
func recordsFromValues(values [][]interface{}) [][]string {
	records := make([][]string, len(values))
	for i, row := range values {
		record := make([]string, len(row))
		for j, cell := range row {
			record[j] = formatCellValue(cell)
		}
		records[i] = record
	}
	return normalizeRecords(records)
}

func formatCellValue(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
