package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// KindMetadataKey is the field metadata key holding a column's kind.
const KindMetadataKey = "tabrecon.kind"

// parquetBatchSize is the number of rows per record batch.
const parquetBatchSize = 64 * 1024

// Schema describes ds as an Arrow schema of non-null string columns. Column
// names come from ColumnNames; the original label and kind are kept as
// field metadata.
func Schema(ds *core.Dataset) *arrow.Schema {
	names := ColumnNames(ds.Header)
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		kind := core.KindText
		if i < len(ds.Kinds) {
			kind = ds.Kinds[i]
		}
		fields[i] = arrow.Field{
			Name: name,
			Type: arrow.BinaryTypes.String,
			Metadata: arrow.NewMetadata(
				[]string{KindMetadataKey, "tabrecon.label"},
				[]string{kind.String(), ds.Header[i]},
			),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet writes ds as a snappy-compressed Parquet file.
func WriteParquet(w io.Writer, ds *core.Dataset) error {
	schema := Schema(ds)

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	flush := func() error {
		rec := builder.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		return writer.Write(rec)
	}

	for start := 0; start < len(ds.Rows); start += parquetBatchSize {
		end := min(start+parquetBatchSize, len(ds.Rows))
		for col := range schema.NumFields() {
			sb := builder.Field(col).(*array.StringBuilder)
			sb.Reserve(end - start)
			for _, row := range ds.Rows[start:end] {
				if col < len(row) {
					sb.Append(row[col])
				} else {
					sb.Append("")
				}
			}
		}
		if err := flush(); err != nil {
			writer.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
