package recorder

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

const upsertDocument = `
INSERT INTO documents (
	doc_num, pin, date_executed, date_recorded, num_pages,
	address, doc_type, consideration_amount, pdf_url
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (doc_num) DO UPDATE SET
	pin = excluded.pin,
	date_executed = excluded.date_executed,
	date_recorded = excluded.date_recorded,
	num_pages = excluded.num_pages,
	address = excluded.address,
	doc_type = excluded.doc_type,
	consideration_amount = excluded.consideration_amount,
	pdf_url = excluded.pdf_url`

const insertEntity = `
INSERT OR IGNORE INTO entities (doc_num, pin, entity_name, entity_status, trust_number)
VALUES (?, ?, ?, ?, ?)`

const insertRelatedPin = `
INSERT OR IGNORE INTO related_pins (doc_num, pin, related_pin)
VALUES (?, ?, ?)`

const insertPriorDoc = `
INSERT OR IGNORE INTO prior_docs (doc_num, pin, prior_doc_num)
VALUES (?, ?, ?)`

// Upsert writes a document and its child rows in one transaction.
// The document row converges last-write-wins on its scalars; child
// rows are set-unioned through their natural-key unique indexes, so
// re-encountering the same document from another PIN or a later run
// never duplicates rows.
func (s Store) Upsert(ctx context.Context, doc Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, upsertDocument,
		doc.DocNum,
		doc.Pin,
		doc.DateExecuted,
		doc.DateRecorded,
		doc.NumPages,
		doc.Address,
		doc.DocType,
		doc.ConsiderationAmount,
		doc.PdfUrl,
	)
	if err != nil {
		return err
	}

	for _, entity := range doc.Entities {
		_, err = tx.ExecContext(ctx, insertEntity,
			doc.DocNum, doc.Pin, entity.Name, string(entity.Status), entity.TrustNumber)
		if err != nil {
			return err
		}
	}
	for _, related := range doc.RelatedPins {
		_, err = tx.ExecContext(ctx, insertRelatedPin, doc.DocNum, doc.Pin, related)
		if err != nil {
			return err
		}
	}
	for _, prior := range doc.PriorDocs {
		_, err = tx.ExecContext(ctx, insertPriorDoc, doc.DocNum, doc.Pin, prior)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s Store) IsComplete(ctx context.Context, pin string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM completed_pins WHERE pin = ?`, pin).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s Store) MarkComplete(ctx context.Context, pin string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_pins (pin, completed_at) VALUES (?, ?)`,
		pin, time.Now().Unix())
	return err
}

// PdfTarget points at one downloadable document pdf.
type PdfTarget struct {
	DocNum string
	Pin    string
	PdfUrl string
}

func (s Store) PdfTargets(ctx context.Context) ([]PdfTarget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_num, pin, pdf_url FROM documents WHERE pdf_url IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []PdfTarget
	for rows.Next() {
		var t PdfTarget
		err = rows.Scan(&t.DocNum, &t.Pin, &t.PdfUrl)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// PinSummary is a per-PIN rollup of harvested rows for the stats view.
type PinSummary struct {
	Pin       string
	Documents int64
	Entities  int64
	Completed bool
}

func (s Store) PinSummaries(ctx context.Context) ([]PinSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			d.pin,
			COUNT(DISTINCT d.doc_num),
			COUNT(e.id),
			EXISTS (SELECT 1 FROM completed_pins c WHERE c.pin = d.pin)
		FROM documents d
		LEFT JOIN entities e ON e.doc_num = d.doc_num
		GROUP BY d.pin
		ORDER BY d.pin`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []PinSummary
	for rows.Next() {
		var s PinSummary
		err = rows.Scan(&s.Pin, &s.Documents, &s.Entities, &s.Completed)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
