package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thesavant42/arxived/internal/models"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private database that lives only as long as the connection
const MemoryDSN = ":memory:"

// authorSep joins author names in a single column; it cannot occur in cleaned text
const authorSep = "\x1f"

// DB holds the current session's results in SQLite
type DB struct {
	conn *sql.DB
}

// Filter narrows and pages the stored records
type Filter struct {
	SearchText string
	Limit      int
	Offset     int
}

// StoredQuery is the query the current records were scraped for
type StoredQuery struct {
	Query    models.Query
	StoredAt time.Time
}

// New opens an in-memory session store and initializes the schema
func New() (*DB, error) {
	conn, err := sql.Open("sqlite", MemoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection to :memory: would be a separate database
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(createRecordsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create records schema: %w", err)
	}

	if _, err := conn.Exec(createQueryTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create query schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection, discarding its contents
func (db *DB) Close() error {
	return db.conn.Close()
}

// ReplaceResults swaps the stored records for rs, keeping its order
func (db *DB) ReplaceResults(rs models.ResultSet) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(deleteRecords); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	q := rs.Query
	if _, err := tx.Exec(upsertQuery, q.Topic, q.Limit, formatDate(q.Start), formatDate(q.End)); err != nil {
		return fmt.Errorf("failed to store query: %w", err)
	}

	stmt, err := tx.Prepare(insertRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range rs.Records {
		_, err := stmt.Exec(
			i,
			r.Title,
			formatTimestamp(r.Published),
			strings.Join(r.Authors, authorSep),
			r.Summary,
			r.Link,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRecordsFiltered returns a page of records matching the filter and the
// total number of matches
func (db *DB) GetRecordsFiltered(filter Filter) ([]models.Record, int, error) {
	pattern := ""
	if filter.SearchText != "" {
		pattern = "%" + filter.SearchText + "%"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var total int
	err := db.conn.QueryRow(selectRecordCountFiltered,
		filter.SearchText, pattern, pattern, pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := db.conn.Query(selectRecordsByFilter,
		filter.SearchText, pattern, pattern, pattern,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// Count returns how many records are stored
func (db *DB) Count() (int, error) {
	var count int
	if err := db.conn.QueryRow(selectRecordCount).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CurrentQuery returns the query the stored records belong to.
// ok is false before the first ReplaceResults.
func (db *DB) CurrentQuery() (StoredQuery, bool, error) {
	var (
		sq                       StoredQuery
		startDate, endDate, when string
	)
	err := db.conn.QueryRow(selectQuery).Scan(&sq.Query.Topic, &sq.Query.Limit, &startDate, &endDate, &when)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredQuery{}, false, nil
	}
	if err != nil {
		return StoredQuery{}, false, fmt.Errorf("failed to read query: %w", err)
	}

	sq.Query.Start, _ = parseTimestamp(startDate)
	sq.Query.End, _ = parseTimestamp(endDate)
	sq.StoredAt, _ = parseTimestamp(when)
	return sq, true, nil
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	var records []models.Record
	for rows.Next() {
		var (
			r                  models.Record
			position           int
			published, authors string
		)
		if err := rows.Scan(&position, &r.Title, &published, &authors, &r.Summary, &r.Link); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Published, _ = parseTimestamp(published)
		if authors != "" {
			r.Authors = strings.Split(authors, authorSep)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}

// parseTimestamp parses SQLite timestamp formats
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
