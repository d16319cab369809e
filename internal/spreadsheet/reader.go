package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnreadableWorkbook means the bytes are not a workbook we can parse
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	// ErrEmptyWorkbook means the workbook parsed but holds no rows
	ErrEmptyWorkbook = errors.New("workbook contains no rows")
)

// Format is a supported workbook encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// PreferredSheet is read when present, otherwise the first sheet is used
const PreferredSheet = "Products"

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook is a parsed sheet: a positional header row and data rows padded to
// the header width, so Headers[i] always describes Rows[n][i].
type Workbook struct {
	Sheet     string
	HeaderRow int // 0-based sheet row holding the headers
	Headers   []string
	Rows      [][]string
}

// SheetRow converts a data row index to its 0-based sheet row
func (w *Workbook) SheetRow(dataIndex int) int {
	return w.HeaderRow + 1 + dataIndex
}

// LineNumber converts a data row index to the 1-based line a user sees in a spreadsheet
func (w *Workbook) LineNumber(dataIndex int) int {
	return w.SheetRow(dataIndex) + 1
}

// IsBlank reports whether every cell of a row is empty
func IsBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// DetectFormat picks a format from the file extension, falling back to content sniffing
func DetectFormat(filename string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is(xlsxMIME), mt.Is("application/zip"):
		return FormatXLSX, nil
	case mt.Is("text/csv"), mt.Is("text/tab-separated-values"), mt.Is("text/plain"):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unsupported content type %s", ErrUnreadableWorkbook, mt.String())
}

// Read parses raw workbook bytes
func Read(data []byte, format Format) (*Workbook, error) {
	if len(data) == 0 {
		return nil, ErrEmptyWorkbook
	}

	var (
		sheet string
		rows  [][]string
		err   error
	)
	switch format {
	case FormatXLSX:
		sheet, rows, err = readXLSX(data)
	case FormatCSV:
		sheet, rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrUnreadableWorkbook, format)
	}
	if err != nil {
		return nil, err
	}

	headerRow := -1
	for i, r := range rows {
		if !IsBlank(r) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, ErrEmptyWorkbook
	}

	headers := make([]string, len(rows[headerRow]))
	for i, h := range rows[headerRow] {
		headers[i] = strings.TrimSpace(h)
	}
	// Trailing blank headers carry no columns
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	body := rows[headerRow+1:]
	out := make([][]string, len(body))
	for i, r := range body {
		out[i] = pad(r, len(headers))
	}

	return &Workbook{
		Sheet:     sheet,
		HeaderRow: headerRow,
		Headers:   headers,
		Rows:      out,
	}, nil
}

// pad aligns a row to the header width, trimming cell whitespace
func pad(row []string, width int) []string {
	cells := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}
	return cells
}

func readXLSX(data []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheet, err := pickSheet(f)
	if err != nil {
		return "", nil, err
	}

	// Raw values keep numeric cells free of display formats such as "#,##0",
	// whose thousands separator would otherwise read as a decimal comma
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to read sheet %q: %v", ErrUnreadableWorkbook, sheet, err)
	}
	return sheet, rows, nil
}

// pickSheet prefers the "Products" sheet if it exists
func pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: no sheets found", ErrUnreadableWorkbook)
	}
	for _, name := range sheets {
		if strings.EqualFold(name, PreferredSheet) {
			return name, nil
		}
	}
	return sheets[0], nil
}

func readCSV(data []byte) (string, [][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: error reading line %d: %v", ErrUnreadableWorkbook, len(rows)+1, err)
		}
		rows = append(rows, record)
	}
	return "", rows, nil
}

// detectDelimiter picks the most frequent candidate on the first non-empty line.
// Semicolons are common in spreadsheets exported with a comma decimal separator.
func detectDelimiter(data []byte) rune {
	var line []byte
	for _, l := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
