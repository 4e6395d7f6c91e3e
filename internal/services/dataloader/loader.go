package dataloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"genio/internal/loan"
	"genio/internal/models"
	"genio/internal/money"
	"genio/internal/services/cache"
	"genio/internal/services/storage"
	"genio/internal/services/workbook"
)

// Generated and hand-maintained CSV files, relative to the data directory.
const (
	ReportCSV       = "relatorio.csv"
	ParticipantsCSV = "informacoes.csv"
	EvolutionCSV    = "evolucao_caixinha.csv"
	ChargesCSV      = "encargos.csv"
)

// Sheet layout of the source workbooks.
const (
	reportSheet       = "Base"
	participantsSheet = "participantes"
	participantsHint  = "particip"

	// The report's header is on row 4.
	reportStartRow = 3

	// Positional fallback for the evolution series: from row 190, value in
	// column E, date in column U, nothing before the pool opened.
	evolutionStartRow = 190
	evolutionValueCol = 4
	evolutionDateCol  = 20
	evolutionCacheKey = "evolucao"
)

var evolutionStartDate = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

var (
	// ErrNoWorkbook is returned when a source workbook is missing.
	ErrNoWorkbook = errors.New("workbook not found")
	// ErrNoData is returned when a sheet or CSV has nothing usable.
	ErrNoData = errors.New("no data")
	// ErrNotFound is returned when no participant matches a CPF.
	ErrNotFound = errors.New("participant not found")
)

// columnMappings maps the headers found in the workbooks to our standard
// names. Candidates are matched against accent-folded, lowercased headers
// and tried in order.
var columnMappings = map[string][]string{
	"CPF":     {"cpf"},
	"Name":    {"nome"},
	"Current": {"atual", "saldo atual", "saldo_atual", "saldo"},
	"Applied": {"aplicado"},
	"Value":   {"caixinha 2026", "caixinha2026", "caixinha"},
	"Date":    {"data"},
}

// buildColumnIndex resolves every standard column present in header.
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for standard, candidates := range columnMappings {
		if idx := workbook.FindColumn(header, candidates...); idx >= 0 {
			colIndex[standard] = idx
		}
	}
	return colIndex
}

// DataLoader turns the pool's workbooks into the CSV files the dashboard
// reads, and answers the dashboard's queries from those files.
type DataLoader struct {
	ReportPath       string
	ParticipantsPath string

	store *storage.Storage
	cache cache.Cache
	ttl   time.Duration
	log   logrus.FieldLogger

	mu sync.Mutex
}

// New creates a DataLoader. cache may be nil.
func New(reportPath, participantsPath string, store *storage.Storage, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) *DataLoader {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &DataLoader{
		ReportPath:       reportPath,
		ParticipantsPath: participantsPath,
		store:            store,
		cache:            c,
		ttl:              ttl,
		log:              log,
	}
}

// Store returns the underlying storage.
func (dl *DataLoader) Store() *storage.Storage {
	return dl.store
}

func openWorkbook(path string) (*workbook.Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoWorkbook)
		}
		return nil, err
	}
	return workbook.Open(path)
}

// reportRows reads the report's "Base" sheet as a raw grid.
func (dl *DataLoader) reportRows() ([][]string, error) {
	wb, err := openWorkbook(dl.ReportPath)
	if err != nil {
		return nil, err
	}
	sheet := workbook.ResolveSheet(wb.SheetNames(), reportSheet, "")
	if sheet == "" {
		return nil, fmt.Errorf("%s has no sheets: %w", filepath.Base(dl.ReportPath), ErrNoData)
	}
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// RefreshReport regenerates relatorio.csv from the report workbook: the
// "Base" sheet from row 4 on, without columns that are entirely empty.
func (dl *DataLoader) RefreshReport() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	rows, err := dl.reportRows()
	if err != nil {
		return err
	}
	if len(rows) <= reportStartRow {
		return fmt.Errorf("report sheet: %w", ErrNoData)
	}

	records := dropEmptyColumns(trimTrailingEmpty(rows[reportStartRow:]))
	if len(records) == 0 {
		return fmt.Errorf("report sheet: %w", ErrNoData)
	}
	if err := dl.store.WriteCSV(ReportCSV, records); err != nil {
		return fmt.Errorf("writing %s: %w", ReportCSV, err)
	}
	dl.invalidate()

	dl.log.WithField("rows", len(records)).Debug("report refreshed")
	return nil
}

// RefreshParticipants regenerates informacoes.csv from the participants
// workbook.
func (dl *DataLoader) RefreshParticipants() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	wb, err := openWorkbook(dl.ParticipantsPath)
	if err != nil {
		return err
	}
	sheet := workbook.ResolveSheet(wb.SheetNames(), participantsSheet, participantsHint)
	if sheet == "" {
		return fmt.Errorf("%s has no sheets: %w", filepath.Base(dl.ParticipantsPath), ErrNoData)
	}
	rows, err := wb.Rows(sheet)
	if err != nil {
		return fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	rows = trimTrailingEmpty(rows)
	if len(rows) == 0 {
		return fmt.Errorf("participants sheet: %w", ErrNoData)
	}
	if err := dl.store.WriteCSV(ParticipantsCSV, rows); err != nil {
		return fmt.Errorf("writing %s: %w", ParticipantsCSV, err)
	}

	dl.log.WithField("rows", len(rows)-1).Debug("participants refreshed")
	return nil
}

// RefreshAll refreshes both CSV files, logging rather than returning
// failures. It is the scheduled job.
func (dl *DataLoader) RefreshAll() {
	if err := dl.RefreshReport(); err != nil {
		dl.log.WithError(err).Warn("Warning: report refresh failed")
	}
	if err := dl.RefreshParticipants(); err != nil {
		dl.log.WithError(err).Warn("Warning: participants refresh failed")
	}
}

// RefreshEvolution extracts the series by position from the report sheet
// and writes evolucao_caixinha.csv with columns idx, data, valor.
func (dl *DataLoader) RefreshEvolution() ([][]string, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	rows, err := dl.reportRows()
	if err != nil {
		return nil, err
	}

	records := [][]string{{"idx", "data", "valor"}}
	for i := evolutionStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		value := cell(row, evolutionValueCol)
		if value == "" || strings.EqualFold(value, "nan") {
			continue
		}
		date := cell(row, evolutionDateCol)
		parsed := parseDate(date)
		if parsed.IsZero() || parsed.Before(evolutionStartDate) {
			continue
		}
		records = append(records, []string{fmt.Sprint(i + 1), date, value})
	}
	if len(records) == 1 {
		return nil, fmt.Errorf("evolution rows: %w", ErrNoData)
	}

	if err := dl.store.WriteCSV(EvolutionCSV, records); err != nil {
		return nil, fmt.Errorf("writing %s: %w", EvolutionCSV, err)
	}
	dl.invalidate()
	return records, nil
}

// Evolution returns the pool's evolution series, the last limit points
// when limit > 0. It prefers the report CSV's "caixinha" column and falls
// back to the positional extraction. Rows whose value does not parse are
// skipped after the limit is applied.
func (dl *DataLoader) Evolution(ctx context.Context, limit int) []models.Point {
	points, ok := dl.cachedEvolution(ctx)
	if !ok {
		points = dl.loadEvolution()
		dl.storeEvolution(ctx, points)
	}
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return models.Clean(points)
}

// loadEvolution keeps unparseable values as NaN so the limit counts rows,
// not points.
func (dl *DataLoader) loadEvolution() []models.Point {
	if records, err := dl.store.ReadCSV(ReportCSV); err == nil && len(records) > 1 {
		colIndex := buildColumnIndex(records[0])
		if valueIdx, ok := colIndex["Value"]; ok {
			dateIdx, hasDate := colIndex["Date"]
			points := make([]models.Point, 0, len(records)-1)
			for _, record := range records[1:] {
				p := models.Point{Value: parseValue(cell(record, valueIdx))}
				if hasDate {
					p.Date = cell(record, dateIdx)
				}
				points = append(points, p)
			}
			return points
		}
	} else if err != nil && !os.IsNotExist(err) {
		dl.log.WithError(err).Warn("Warning: could not read report CSV")
	}

	records, err := dl.RefreshEvolution()
	if err != nil {
		dl.log.WithError(err).Debug("positional evolution unavailable")
		records, err = dl.store.ReadCSV(EvolutionCSV)
		if err != nil || len(records) < 2 {
			return nil
		}
	}

	header := records[0]
	valueIdx, dateIdx := indexOf(header, "valor"), indexOf(header, "data")
	if valueIdx < 0 {
		return nil
	}
	points := make([]models.Point, 0, len(records)-1)
	for _, record := range records[1:] {
		p := models.Point{Value: parseValue(cell(record, valueIdx))}
		if dateIdx >= 0 {
			p.Date = cell(record, dateIdx)
		}
		points = append(points, p)
	}
	return points
}

func (dl *DataLoader) cachedEvolution(ctx context.Context) ([]models.Point, bool) {
	if dl.cache == nil {
		return nil, false
	}
	data, ok := dl.cache.Get(ctx, evolutionCacheKey)
	if !ok {
		return nil, false
	}
	var points []models.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, false
	}
	return points, true
}

func (dl *DataLoader) storeEvolution(ctx context.Context, points []models.Point) {
	if dl.cache == nil || len(points) == 0 {
		return
	}
	data, err := json.Marshal(encodable(points))
	if err != nil {
		return
	}
	if err := dl.cache.Set(ctx, evolutionCacheKey, data, dl.ttl); err != nil {
		dl.log.WithError(err).Debug("caching evolution failed")
	}
}

// Invalidate drops the cached series, for callers that replaced the CSV
// files behind the loader's back.
func (dl *DataLoader) Invalidate() {
	dl.invalidate()
}

func (dl *DataLoader) invalidate() {
	if dl.cache == nil {
		return
	}
	if err := dl.cache.Delete(context.Background(), evolutionCacheKey); err != nil {
		dl.log.WithError(err).Debug("cache invalidation failed")
	}
}

// participants reads informacoes.csv, regenerating it once when it is
// missing or lacks the CPF column.
func (dl *DataLoader) participants() ([][]string, map[string]int, error) {
	records, err := dl.store.ReadCSV(ParticipantsCSV)
	if err == nil && len(records) > 1 {
		colIndex := buildColumnIndex(records[0])
		if _, ok := colIndex["CPF"]; ok {
			return records, colIndex, nil
		}
	}

	if err := dl.RefreshParticipants(); err != nil {
		return nil, nil, err
	}
	records, err = dl.store.ReadCSV(ParticipantsCSV)
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s: %w", ParticipantsCSV, ErrNoData)
	}
	colIndex := buildColumnIndex(records[0])
	if _, ok := colIndex["CPF"]; !ok {
		return nil, nil, fmt.Errorf("%s has no CPF column: %w", ParticipantsCSV, ErrNoData)
	}
	return records, colIndex, nil
}

// Participant looks up the participant with the given CPF. Balances is
// nil when the current balance column is missing or empty.
func (dl *DataLoader) Participant(cpf string) (*models.Participant, error) {
	want := NormalizeCPF(cpf)
	if want == "" {
		return nil, ErrNotFound
	}

	records, colIndex, err := dl.participants()
	if err != nil {
		return nil, err
	}

	cpfIdx := colIndex["CPF"]
	for _, record := range records[1:] {
		if NormalizeCPF(cell(record, cpfIdx)) != want {
			continue
		}
		p := &models.Participant{CPF: want}
		if idx, ok := colIndex["Name"]; ok {
			p.Name = cell(record, idx)
		}
		p.Balances = balancesFrom(record, colIndex)
		return p, nil
	}
	return nil, ErrNotFound
}

// Balances returns the participant's balances, nil when unknown.
func (dl *DataLoader) Balances(cpf string) *models.Balances {
	p, err := dl.Participant(cpf)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			dl.log.WithError(err).Warn("Warning: balances lookup failed")
		}
		return nil
	}
	return p.Balances
}

// NameByCPF returns the participant's name, "" when unknown.
func (dl *DataLoader) NameByCPF(cpf string) string {
	p, err := dl.Participant(cpf)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(p.Name)
}

func balancesFrom(record []string, colIndex map[string]int) *models.Balances {
	idx, ok := colIndex["Current"]
	if !ok {
		return nil
	}
	current, ok := money.Parse(cell(record, idx))
	if !ok {
		return nil
	}

	b := &models.Balances{Current: current}
	if idx, ok := colIndex["Applied"]; ok {
		if applied, ok := money.Parse(cell(record, idx)); ok {
			variance := current.Sub(applied)
			b.Applied = &applied
			b.Variance = &variance
		}
	}
	return b
}

// LoadTerms reads the loan charges from encargos.csv. Every key the loan
// panel needs must be present and valid.
func (dl *DataLoader) LoadTerms() (loan.Terms, error) {
	records, err := dl.store.ReadCSV(ChargesCSV)
	if err != nil {
		return loan.Terms{}, fmt.Errorf("reading %s: %w", ChargesCSV, err)
	}
	return parseTerms(records)
}

func parseTerms(records [][]string) (loan.Terms, error) {
	if len(records) == 0 {
		return loan.Terms{}, fmt.Errorf("%s: %w", ChargesCSV, ErrNoData)
	}

	keyIdx, valueIdx := indexOf(records[0], "chave"), indexOf(records[0], "valor")
	if keyIdx < 0 || valueIdx < 0 {
		keyIdx, valueIdx = 0, 1
	}

	charges := make(map[string]string)
	for _, record := range records[1:] {
		key := strings.ToLower(strings.TrimSpace(cell(record, keyIdx)))
		if key == "" {
			continue
		}
		charges[strings.ReplaceAll(key, " ", "_")] = cell(record, valueIdx)
	}

	var missing []string
	for _, key := range []string{"juros_mensal", "max_data", "max_parcelas", "max_valor_perc"} {
		if charges[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return loan.Terms{}, fmt.Errorf("missing required keys in %s: %s", ChargesCSV, strings.Join(missing, ", "))
	}

	var terms loan.Terms
	var err error
	if terms.MonthlyRate, err = parsePercent(charges["juros_mensal"]); err != nil {
		return loan.Terms{}, fmt.Errorf("invalid juros_mensal in %s: %w", ChargesCSV, err)
	}
	if terms.MaxValuePct, err = parsePercent(charges["max_valor_perc"]); err != nil {
		return loan.Terms{}, fmt.Errorf("invalid max_valor_perc in %s: %w", ChargesCSV, err)
	}
	n, ok := loan.ParseInt(loan.OnlyDigits(charges["max_parcelas"]))
	if !ok {
		return loan.Terms{}, fmt.Errorf("invalid max_parcelas in %s", ChargesCSV)
	}
	terms.MaxInstallments = n
	date, ok := loan.ParseDate(charges["max_data"])
	if !ok {
		return loan.Terms{}, fmt.Errorf("invalid max_data in %s", ChargesCSV)
	}
	terms.MaxDate = &date
	return terms, nil
}

// parsePercent reads "4,08", "4.08" or "4,08%".
func parsePercent(s string) (decimal.Decimal, error) {
	text := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if strings.Contains(text, ",") && strings.Contains(text, ".") {
		text = strings.ReplaceAll(text, ".", "")
	}
	text = strings.ReplaceAll(text, ",", ".")
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// NormalizeCPF keeps the digits of cpf, left-padded with zeros to 11.
// It returns "" when there are no digits.
func NormalizeCPF(cpf string) string {
	digits := loan.OnlyDigits(cpf)
	if digits == "" {
		return ""
	}
	if len(digits) < 11 {
		digits = strings.Repeat("0", 11-len(digits)) + digits
	}
	return digits
}

// GetFileInfo returns information about the source workbooks and the
// generated CSV files.
func (dl *DataLoader) GetFileInfo() ([]models.FileInfo, error) {
	var infos []models.FileInfo

	for _, path := range []string{dl.ReportPath, dl.ParticipantsPath} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, models.FileInfo{
			Name:     filepath.Base(path),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime().Format(time.RFC3339),
		})
	}

	for _, name := range []string{ReportCSV, ParticipantsCSV, EvolutionCSV, ChargesCSV} {
		info, err := dl.store.Stat(name)
		if err != nil {
			continue
		}
		rows := 0
		if records, err := dl.store.ReadCSV(name); err == nil && len(records) > 0 {
			rows = len(records) - 1
		}
		infos = append(infos, models.FileInfo{
			Name:      name,
			Path:      dl.store.Path(name),
			Size:      info.Size(),
			Rows:      rows,
			Modified:  info.ModTime().Format(time.RFC3339),
			Generated: name != ChargesCSV,
			Encrypted: dl.store.IsEncrypted(),
		})
	}

	return infos, nil
}
