package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/product-analyzer/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Products")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "products.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func identifiers(ps []model.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Identifier
	}
	return out
}

func TestFromArgs(t *testing.T) {
	t.Parallel()

	got := FromArgs([]string{"4006381333931", " ", "Wireless Mouse X200", "4006381333931"})
	require.Len(t, got, 2)
	assert.Equal(t, model.KindCode, got[0].Kind)
	assert.Equal(t, "Product 4006381333931", got[0].Name)
	assert.Equal(t, model.KindName, got[1].Kind)
}

func TestReadFile_Text(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "list.txt", "# weekly batch\n4006381333931\n\n  Wireless Mouse X200  \n4006381333931\n")
	got, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"4006381333931", "Wireless Mouse X200"}, identifiers(got))
}

func TestReadFile_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "list.csv", strings.Join([]string{
		"code,name",
		"3017620422003, Nutella 400g",
		"# skipped",
		"5449000000996",
		`"Desk Lamp, LED",`,
		"3017620422003,Duplicate",
	}, "\n"))

	got, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Nutella 400g", got[0].Name)
	assert.Equal(t, "Product 5449000000996", got[1].Name)
	assert.Equal(t, "Desk Lamp, LED", got[2].Identifier)
	assert.Equal(t, model.KindName, got[2].Kind)
}

func TestReadFile_XLSX(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, [][]string{
		{"EAN", "Name"},
		{"4006381333931", "Stabilo Pen"},
		{"", "orphan name"},
		{"Wireless Mouse X200"},
	})

	got, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"4006381333931", "Wireless Mouse X200"}, identifiers(got))
	assert.Equal(t, "Stabilo Pen", got[0].Name)
}

func TestReadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.xlsx", "not a zip")
	_, err = ReadFile(context.Background(), bad)
	assert.Error(t, err)
}

func TestReadFile_CSVCancelled(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for range 500 {
		sb.WriteString("4006381333931\n")
	}
	path := writeFile(t, "big.csv", sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadFile(ctx, path)
	assert.Error(t, err)
}
