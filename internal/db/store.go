package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListParams filters ListCases. Zero values mean "no filter".
type ListParams struct {
	State     string
	County    string
	Category  string
	Severity  string
	Status    string
	Source    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type ListResult struct {
	Cases  []models.CaseRecord `json:"cases"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// selectCols is the column list shared by all case queries; scanCase must
// stay in sync with it.
const selectCols = `id, external_id, case_date, report_date, status, severity,
	animal_category, animal_species, animals_affected, animals_dead,
	country, state_province, county, city, latitude, longitude,
	data_source, description, extra_metadata, created_at`

func scanCase(scan func(dest ...any) error) (models.CaseRecord, error) {
	var c models.CaseRecord
	var species, state, county, city, description *string
	var metadataRaw []byte

	err := scan(
		&c.ID, &c.ExternalID, &c.CaseDate, &c.ReportDate, &c.Status, &c.Severity,
		&c.AnimalCategory, &species, &c.AnimalsAffected, &c.AnimalsDead,
		&c.Country, &state, &county, &city, &c.Latitude, &c.Longitude,
		&c.DataSource, &description, &metadataRaw, &c.CreatedAt,
	)
	if err != nil {
		return c, err
	}

	if species != nil {
		c.AnimalSpecies = *species
	}
	if state != nil {
		c.StateProvince = *state
	}
	if county != nil {
		c.County = *county
	}
	if city != nil {
		c.City = *city
	}
	if description != nil {
		c.Description = *description
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &c.ExtraMetadata)
	}
	return c, nil
}

const insertCols = `external_id, case_date, report_date, status, severity,
	animal_category, animal_species, animals_affected, animals_dead,
	country, state_province, county, city, latitude, longitude,
	data_source, description, extra_metadata`

const insertColCount = 18

func insertArgs(c models.CaseRecord) ([]any, error) {
	var metadataRaw []byte
	if len(c.ExtraMetadata) > 0 {
		var err error
		metadataRaw, err = json.Marshal(c.ExtraMetadata)
		if err != nil {
			return nil, fmt.Errorf("marshal extra_metadata for %s: %w", c.ExternalID, err)
		}
	}
	return []any{
		c.ExternalID, c.CaseDate, c.ReportDate, c.Status, c.Severity,
		c.AnimalCategory, nullIfEmpty(c.AnimalSpecies), c.AnimalsAffected, c.AnimalsDead,
		c.Country, nullIfEmpty(c.StateProvince), nullIfEmpty(c.County), nullIfEmpty(c.City),
		c.Latitude, c.Longitude,
		c.DataSource, nullIfEmpty(c.Description), metadataRaw,
	}, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// wrapDuplicate translates the Postgres unique-violation code into the
// sentinel the loader dispatches on.
func wrapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pgErr.Detail)
	}
	return err
}

// InsertCases bulk-inserts records in a single statement. Any unique
// violation rejects the whole call with models.ErrDuplicateKey so the
// caller can fall back to row-at-a-time inserts.
func (s *Store) InsertCases(ctx context.Context, records []models.CaseRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO cases (" + insertCols + ") VALUES ")
	args := make([]any, 0, len(records)*insertColCount)
	for i, rec := range records {
		rowArgs, err := insertArgs(rec)
		if err != nil {
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range rowArgs {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*insertColCount+j+1)
		}
		sb.WriteByte(')')
		args = append(args, rowArgs...)
	}

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

// InsertCase inserts a single record, returning models.ErrDuplicateKey on an
// external_id conflict.
func (s *Store) InsertCase(ctx context.Context, rec models.CaseRecord) error {
	args, err := insertArgs(rec)
	if err != nil {
		return err
	}
	placeholders := make([]string, insertColCount)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := "INSERT INTO cases (" + insertCols + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

// HasCompletedImport reports whether a file with this content hash has
// already been imported to full completion. A completed_with_errors run does
// not count: its failed rows stay retryable, and a re-run reports the
// already-inserted rows as duplicates.
func (s *Store) HasCompletedImport(ctx context.Context, fileHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM data_imports WHERE file_hash = $1 AND status = 'completed')`,
		fileHash).Scan(&exists)
	return exists, err
}

func (s *Store) CreateImport(ctx context.Context, imp *models.ImportRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO data_imports (id, source, filename, file_hash, total_rows, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		imp.ID, imp.Source, imp.Filename, imp.FileHash, imp.TotalRows, imp.Status, imp.StartedAt)
	return err
}

func (s *Store) FinishImport(ctx context.Context, imp *models.ImportRecord) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE data_imports SET successful_rows = $2, failed_rows = $3, duplicate_rows = $4,
		 status = $5, error_log = $6, completed_at = $7, duration_seconds = $8
		 WHERE id = $1`,
		imp.ID, imp.SuccessfulRows, imp.FailedRows, imp.DuplicateRows,
		imp.Status, nullIfEmpty(imp.ErrorLog), imp.CompletedAt, imp.DurationSeconds)
	return err
}

// ListCases returns a filtered, paginated page of cases plus the total count
// matching the filters.
func (s *Store) ListCases(ctx context.Context, params ListParams) (*ListResult, error) {
	var where []string
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if params.State != "" {
		add("state_province ILIKE $%d", params.State)
	}
	if params.County != "" {
		add("county ILIKE $%d", params.County)
	}
	if params.Category != "" {
		add("animal_category = $%d", params.Category)
	}
	if params.Severity != "" {
		add("severity = $%d", params.Severity)
	}
	if params.Status != "" {
		add("status = $%d", params.Status)
	}
	if params.Source != "" {
		add("data_source = $%d", params.Source)
	}
	if params.StartDate != nil {
		add("case_date >= $%d", *params.StartDate)
	}
	if params.EndDate != nil {
		add("case_date <= $%d", *params.EndDate)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM cases"+whereSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}

	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, params.Offset)
	query := fmt.Sprintf("SELECT %s FROM cases%s ORDER BY case_date DESC, created_at DESC LIMIT $%d OFFSET $%d",
		selectCols, whereSQL, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	result := &ListResult{Total: total, Limit: limit, Offset: params.Offset, Cases: []models.CaseRecord{}}
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		result.Cases = append(result.Cases, c)
	}
	return result, rows.Err()
}

func (s *Store) GetCase(ctx context.Context, id uuid.UUID) (*models.CaseRecord, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectCols+" FROM cases WHERE id = $1", id)
	c, err := scanCase(row.Scan)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MapPoint is the trimmed-down case shape served to map views.
type MapPoint struct {
	ID              uuid.UUID             `json:"id"`
	ExternalID      string                `json:"external_id"`
	CaseDate        *time.Time            `json:"case_date"`
	Severity        models.Severity       `json:"severity"`
	AnimalCategory  models.AnimalCategory `json:"animal_category"`
	AnimalsAffected *int                  `json:"animals_affected,omitempty"`
	County          string                `json:"county,omitempty"`
	StateProvince   string                `json:"state_province,omitempty"`
	Latitude        float64               `json:"latitude"`
	Longitude       float64               `json:"longitude"`
}

// MapData returns all geocoded cases, newest first.
func (s *Store) MapData(ctx context.Context) ([]MapPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, external_id, case_date, severity, animal_category, animals_affected,
		        COALESCE(county, ''), COALESCE(state_province, ''), latitude, longitude
		 FROM cases
		 WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		 ORDER BY case_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("map data: %w", err)
	}
	defer rows.Close()

	points := []MapPoint{}
	for rows.Next() {
		var p MapPoint
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.CaseDate, &p.Severity, &p.AnimalCategory,
			&p.AnimalsAffected, &p.County, &p.StateProvince, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("scan map point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Overview is the dashboard aggregate payload.
type Overview struct {
	TotalCases     int            `json:"total_cases"`
	TotalAffected  int64          `json:"total_affected"`
	RecentCases30d int            `json:"recent_cases_30d"`
	ByCategory     map[string]int `json:"by_category"`
	BySeverity     map[string]int `json:"by_severity"`
	ByState        map[string]int `json:"by_state"`
}

func (s *Store) DashboardOverview(ctx context.Context) (*Overview, error) {
	o := &Overview{
		ByCategory: map[string]int{},
		BySeverity: map[string]int{},
		ByState:    map[string]int{},
	}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(animals_affected), 0),
		        COUNT(*) FILTER (WHERE case_date >= CURRENT_DATE - INTERVAL '30 days')
		 FROM cases`).Scan(&o.TotalCases, &o.TotalAffected, &o.RecentCases30d)
	if err != nil {
		return nil, fmt.Errorf("overview totals: %w", err)
	}

	groupInto := func(query string, dest map[string]int) error {
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				return err
			}
			dest[key] = n
		}
		return rows.Err()
	}

	if err := groupInto(`SELECT animal_category, COUNT(*) FROM cases GROUP BY animal_category`, o.ByCategory); err != nil {
		return nil, fmt.Errorf("overview by category: %w", err)
	}
	if err := groupInto(`SELECT severity, COUNT(*) FROM cases GROUP BY severity`, o.BySeverity); err != nil {
		return nil, fmt.Errorf("overview by severity: %w", err)
	}
	if err := groupInto(
		`SELECT state_province, COUNT(*) FROM cases WHERE state_province IS NOT NULL
		 GROUP BY state_province ORDER BY COUNT(*) DESC LIMIT 15`, o.ByState); err != nil {
		return nil, fmt.Errorf("overview by state: %w", err)
	}
	return o, nil
}

// RecentAlerts returns the newest high and critical severity cases.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]models.CaseRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+selectCols+` FROM cases WHERE severity IN ('high', 'critical')
		 ORDER BY case_date DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.CaseRecord{}
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, c)
	}
	return alerts, rows.Err()
}

// ListImports returns import audit rows, newest first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]models.ImportRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, filename, file_hash, total_rows, successful_rows, failed_rows,
		        duplicate_rows, status, COALESCE(error_log, ''), started_at, completed_at, duration_seconds
		 FROM data_imports ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	imports := []models.ImportRecord{}
	for rows.Next() {
		var imp models.ImportRecord
		if err := rows.Scan(&imp.ID, &imp.Source, &imp.Filename, &imp.FileHash,
			&imp.TotalRows, &imp.SuccessfulRows, &imp.FailedRows, &imp.DuplicateRows,
			&imp.Status, &imp.ErrorLog, &imp.StartedAt, &imp.CompletedAt, &imp.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}
