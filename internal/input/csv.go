package input

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

func readCSVFile(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open csv")
	}
	defer f.Close() //nolint:errcheck
	rowCh, errCh := streamCSV(ctx, f)
	return collect(ctx, rowCh, errCh)
}

// streamCSV sends trimmed CSV records to the returned channel. Both channels
// close when the reader is exhausted or ctx ends.
func streamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		reader.Comment = '#'

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "input: read csv row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "input: csv cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// collect drains a row stream, returning the first error reported.
func collect(ctx context.Context, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "input: cancelled")
	}
	return rows, nil
}
