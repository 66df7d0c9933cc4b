package db

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS records (
    position INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    published TEXT,
    authors TEXT,
    summary TEXT,
    link TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_published ON records(published);
`

// Single-row table holding the query the stored records belong to
const createQueryTable = `
CREATE TABLE IF NOT EXISTS current_query (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    topic TEXT NOT NULL,
    result_limit INTEGER NOT NULL,
    start_date TEXT,
    end_date TEXT,
    stored_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const deleteRecords = `DELETE FROM records`

const insertRecord = `
INSERT INTO records (position, title, published, authors, summary, link)
VALUES (?, ?, ?, ?, ?, ?)
`

const upsertQuery = `
INSERT OR REPLACE INTO current_query (id, topic, result_limit, start_date, end_date)
VALUES (1, ?, ?, ?, ?)
`

const selectQuery = `
SELECT topic, result_limit, COALESCE(start_date, ''), COALESCE(end_date, ''), stored_at
FROM current_query WHERE id = 1
`

const selectRecordCount = `SELECT COUNT(*) FROM records`

// Empty search text matches everything
const selectRecordCountFiltered = `
SELECT COUNT(*) FROM records
WHERE (? = '' OR title LIKE ? OR authors LIKE ? OR summary LIKE ?)
`

const selectRecordsByFilter = `
SELECT position, title, COALESCE(published, ''), COALESCE(authors, ''), COALESCE(summary, ''), COALESCE(link, '')
FROM records
WHERE (? = '' OR title LIKE ? OR authors LIKE ? OR summary LIKE ?)
ORDER BY position ASC
LIMIT ? OFFSET ?
`
