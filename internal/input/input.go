// Package input reads product lists from command arguments and from text,
// CSV and XLSX files.
package input

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/model"
)

// headerWords mark a first row as a header when its first cell matches.
var headerWords = map[string]bool{
	"identifier": true,
	"id":         true,
	"code":       true,
	"ean":        true,
	"gtin":       true,
	"product":    true,
	"name":       true,
}

// FromArgs builds products from positional arguments, one identifier each.
func FromArgs(args []string) []model.Product {
	products := make([]model.Product, 0, len(args))
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			continue
		}
		products = append(products, model.NewProduct(a, ""))
	}
	return model.DedupeProducts(products)
}

// ReadFile reads products from path. The format follows the extension:
// .csv and .xlsx take the identifier from the first column and an optional
// name from the second; anything else is read as one identifier per line.
// Blank lines and lines starting with '#' are skipped. Duplicates are
// dropped, first occurrence wins.
func ReadFile(ctx context.Context, path string) ([]model.Product, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVFile(ctx, path)
	case ".xlsx":
		rows, err = readXLSX(ctx, path)
	default:
		rows, err = readTextFile(path)
	}
	if err != nil {
		return nil, err
	}
	return model.DedupeProducts(fromRows(rows)), nil
}

func fromRows(rows [][]string) []model.Product {
	products := make([]model.Product, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		if i == 0 && headerWords[strings.ToLower(id)] {
			continue
		}
		var name string
		if len(row) > 1 {
			name = row[1]
		}
		products = append(products, model.NewProduct(id, name))
	}
	return products
}

func readTextFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open file")
	}
	defer f.Close() //nolint:errcheck
	return readLines(f)
}

func readLines(r io.Reader) ([][]string, error) {
	var rows [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, []string{line})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "input: read lines")
	}
	return rows, nil
}
