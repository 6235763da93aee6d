package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore.
// Similarity search is a brute-force scan of the collection.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

const upsertRecordSQL = `
	INSERT INTO records (collection, document_id, chunk_index, document_type, content, embedding)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (collection, document_id, chunk_index) DO UPDATE SET
		document_type = excluded.document_type,
		content = excluded.content,
		embedding = excluded.embedding,
		updated_at = CURRENT_TIMESTAMP`

// Upsert writes the batch in one transaction. An existing key keeps its seq.
func (v *vectorStore) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims, err := domain.BatchDimensions(records)
	if err != nil {
		return err
	}

	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (name) VALUES (?) ON CONFLICT (name) DO NOTHING", collection); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	stored, count, err := collectionShape(ctx, tx, collection)
	if err != nil {
		return err
	}
	if count > 0 && stored != dims {
		return &domain.DimensionMismatchError{Scope: "collection " + collection, Expected: stored, Got: dims}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE collections SET dimensions = ? WHERE name = ?", dims, collection); err != nil {
		return fmt.Errorf("fixing dimensions: %w", err)
	}

	for docID, last := range domain.LastChunkIndexes(records) {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ? AND document_id = ? AND chunk_index > ?",
			collection, docID, last); err != nil {
			return fmt.Errorf("removing stale chunks of %s: %w", docID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			collection, r.DocumentID, r.ChunkIndex, string(r.DocumentType), r.Text,
			float32SliceToBytes(r.Embedding)); err != nil {
			return fmt.Errorf("upserting %s: %w", r.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Search scores every record of the collection against query.
func (v *vectorStore) Search(
	ctx context.Context, collection string, query domain.Embedding, k int,
) (domain.RetrievalResult, error) {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	dims, count, err := collectionShape(ctx, tx, collection)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if query.Dimensions() != dims {
		return nil, &domain.DimensionMismatchError{Scope: "collection " + collection, Expected: dims, Got: query.Dimensions()}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT seq, document_id, chunk_index, document_type, content, embedding
		FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	scored := make([]domain.ScoredRecord, 0, count)
	for rows.Next() {
		var (
			r       domain.VectorRecord
			docType string
			blob    []byte
		)
		if err := rows.Scan(&r.Seq, &r.DocumentID, &r.ChunkIndex, &docType, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.DocumentType = domain.DocumentType(docType)
		r.Embedding = bytesToFloat32Slice(blob)
		scored = append(scored, domain.ScoredRecord{
			Record:     r,
			Similarity: domain.CosineSimilarity(query, r.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return domain.RankResults(scored, k), nil
}

// Delete removes all records of a document. The dimension is released
// when the collection becomes empty.
func (v *vectorStore) Delete(ctx context.Context, collection, documentID string) (int, error) {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND document_id = ?", collection, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE collections SET dimensions = 0
		WHERE name = ? AND NOT EXISTS (SELECT 1 FROM records WHERE collection = ?)`,
		collection, collection); err != nil {
		return 0, fmt.Errorf("releasing dimensions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return int(removed), nil
}

// Count returns the number of records in a collection.
func (v *vectorStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Collections lists all collections sorted by name.
func (v *vectorStore) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT c.name, c.dimensions, COUNT(r.seq)
		FROM collections c
		LEFT JOIN records r ON r.collection = c.name
		GROUP BY c.name, c.dimensions
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var infos []domain.CollectionInfo
	for rows.Next() {
		var info domain.CollectionInfo
		if err := rows.Scan(&info.Name, &info.Dimensions, &info.Count); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Drop removes a collection and its records.
func (v *vectorStore) Drop(ctx context.Context, collection string) error {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying store.
func (v *vectorStore) Close() error {
	return v.store.Close()
}

// collectionShape returns the stored dimension and record count of a
// collection. A missing collection has neither.
func collectionShape(ctx context.Context, tx *sql.Tx, collection string) (int, int, error) {
	var dims, count int
	err := tx.QueryRowContext(ctx, `
		SELECT c.dimensions, (SELECT COUNT(*) FROM records r WHERE r.collection = c.name)
		FROM collections c WHERE c.name = ?`, collection).Scan(&dims, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	return dims, count, nil
}
