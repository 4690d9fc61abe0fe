// Package artifact reads and writes the parquet files served by the
// forecast API.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// ConsumptionRow is one hourly value of a consumption series: the model
// input, the target history, a prediction or its ground truth.
type ConsumptionRow struct {
	DatetimeDK      int64   `parquet:"name=datetime_dk,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	MunicipalityNum int32   `parquet:"name=municipality_num,type=INT32"`
	Branch          int32   `parquet:"name=branch,type=INT32"`
	ConsumptionKWh  float64 `parquet:"name=consumption_kwh,type=DOUBLE"`
}

// MetricRow is one evaluation of the deployed model.
type MetricRow struct {
	Datetime int64   `parquet:"name=datetime,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	MAPE     float64 `parquet:"name=mape,type=DOUBLE"`
	RMSPE    float64 `parquet:"name=rmspe,type=DOUBLE"`
}

// Encode writes rows as a snappy-compressed parquet file.
func Encode[T any](rows []T) ([]byte, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every row of a parquet file.
func Decode[T any](data []byte) (rows []T, err error) {
	// The reader panics on some malformed footers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read parquet file: %v", r)
		}
	}()

	pr, err := reader.NewParquetReader(newMemFile(data), new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer pr.ReadStop()

	rows = make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}

// memFile is a read-only source.ParquetFile over a byte slice.
type memFile struct {
	*bytes.Reader
	data []byte
}

func newMemFile(data []byte) *memFile {
	return &memFile{Reader: bytes.NewReader(data), data: data}
}

// Open returns an independent reader over the same bytes; the parquet
// reader opens one per column.
func (f *memFile) Open(string) (source.ParquetFile, error) {
	return newMemFile(f.data), nil
}

func (f *memFile) Create(string) (source.ParquetFile, error) {
	return nil, errors.New("parquet memory file is read-only")
}

func (f *memFile) Write([]byte) (int, error) {
	return 0, io.ErrShortWrite
}

func (f *memFile) Close() error { return nil }
