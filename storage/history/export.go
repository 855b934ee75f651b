package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Actor      string `parquet:"name=actor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet streams every entry matching f (ignoring f.Limit) to w as a
// snappy-compressed parquet file and returns the row count.
func (s *Store) ExportParquet(ctx context.Context, w io.Writer, f Filter) (int, error) {
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(parquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("history: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	page := Filter{Type: f.Type, Actor: f.Actor, AfterID: f.AfterID, Limit: maxLimit}
	for {
		entries, err := s.Query(ctx, page)
		if err != nil {
			return rows, err
		}
		for _, entry := range entries {
			row := &parquetRow{
				ID:         int64(entry.ID),
				Type:       entry.Type,
				Actor:      entry.Actor,
				Attributes: entry.Payload,
				CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				return rows, fmt.Errorf("history: parquet write: %w", err)
			}
			rows++
		}
		if len(entries) < maxLimit {
			break
		}
		page.AfterID = entries[len(entries)-1].ID
	}
	if err := pw.WriteStop(); err != nil {
		return rows, fmt.Errorf("history: parquet flush: %w", err)
	}
	return rows, nil
}
