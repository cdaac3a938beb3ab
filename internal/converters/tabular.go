package converters

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/saintfish/chardet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/formats"
)

const tabularName = "tabular"

// sheet is one named table of string cells.
type sheet struct {
	Name string
	Rows [][]string
}

// Tabular converts between delimited text, spreadsheets and JSON records.
// XLS is read-only. Text outputs of multi-sheet workbooks yield one
// artifact per sheet.
type Tabular struct {
	Unimplemented
	formats []string
}

func NewTabular() *Tabular {
	return &Tabular{formats: formats.InCategory(formats.Tabular)}
}

func (t *Tabular) Name() string { return tabularName }

func (t *Tabular) SupportedFormats() []string { return slices.Clone(t.formats) }

func (t *Tabular) CanConvert(input, output string) bool {
	return supports(t.formats, input, output) && formats.Normalize(output) != "xls"
}

func (t *Tabular) Convert(ctx context.Context, job Job) ([]string, error) {
	if err := Prepare(t, job); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(tabularName, err, "")
	}

	sheets, err := readSheets(job.InputPath, formats.Normalize(job.InputFormat))
	if err != nil {
		return nil, failure(tabularName, err, "")
	}

	out := formats.Normalize(job.OutputFormat)
	if out == "xlsx" {
		dst := OutputPath(job)
		if err := writeXLSX(dst, sheets); err != nil {
			return nil, failure(tabularName, err, "")
		}
		return []string{dst}, nil
	}

	var paths []string
	used := map[string]int{}
	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return nil, failure(tabularName, err, "")
		}
		dst := OutputPath(job)
		if len(sheets) > 1 {
			suffix := sanitizeSheet(s.Name)
			used[suffix]++
			if n := used[suffix]; n > 1 {
				suffix += "-" + strconv.Itoa(n)
			}
			dst = filepath.Join(job.OutputDir, filex.Stem(job.InputPath)+"-"+suffix+"."+out)
		}
		if err := writeText(dst, s.Rows, out); err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return nil, failure(tabularName, err, "")
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func readSheets(path, format string) ([]sheet, error) {
	switch format {
	case "csv":
		return readDelimited(path, ',')
	case "tsv":
		return readDelimited(path, '\t')
	case "xlsx":
		return readXLSX(path)
	case "xls":
		return readXLS(path)
	case "json":
		return readJSON(path)
	default:
		return nil, fmt.Errorf("no reader for %q", format)
	}
}

func readDelimited(path string, comma rune) ([]sheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(decodeText(raw)))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited: %w", err)
	}
	return []sheet{{Name: "Sheet1", Rows: rows}}, nil
}

// decodeText returns data as UTF-8, detecting the source charset when the
// bytes are not already valid UTF-8.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || res == nil {
		return string(data)
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func readXLSX(path string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var out []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		out = append(out, sheet{Name: name, Rows: rows})
	}
	if len(out) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return out, nil
}

func readXLS(path string) ([]sheet, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	var out []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		name := ws.Name
		if name == "" {
			name = "Sheet" + strconv.Itoa(i+1)
		}

		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		out = append(out, sheet{Name: name, Rows: rows})
	}
	if len(out) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return out, nil
}

// readJSON accepts an array of objects (keys become the header) or an
// array of arrays.
func readJSON(path string) ([]sheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("parse json: expected a top-level array: %w", err)
	}

	var header []string
	seen := map[string]bool{}
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			header = append(header, k)
		}
	}

	var rows [][]string
	if len(header) > 0 {
		rows = append(rows, header)
	}
	for _, it := range items {
		switch v := it.(type) {
		case map[string]any:
			row := make([]string, len(header))
			for i, k := range header {
				row[i] = jsonCell(v[k])
			}
			rows = append(rows, row)
		case []any:
			row := make([]string, len(v))
			for i, c := range v {
				row[i] = jsonCell(c)
			}
			rows = append(rows, row)
		default:
			rows = append(rows, []string{jsonCell(v)})
		}
	}
	return []sheet{{Name: "Sheet1", Rows: rows}}, nil
}

func jsonCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(b)
	}
}

func writeText(path string, rows [][]string, format string) error {
	var buf bytes.Buffer
	switch format {
	case "csv", "tsv":
		w := csv.NewWriter(&buf)
		if format == "tsv" {
			w.Comma = '\t'
		}
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write %s: %w", format, err)
		}
	case "json":
		if err := writeRecords(&buf, rows); err != nil {
			return err
		}
	default:
		return fmt.Errorf("no writer for %q", format)
	}
	return os.WriteFile(path, buf.Bytes(), 0o640)
}

// writeRecords emits the first row as keys and every further row as a JSON
// object, preserving column order.
func writeRecords(buf *bytes.Buffer, rows [][]string) error {
	buf.WriteString("[")
	if len(rows) > 0 {
		header := uniqueHeader(rows[0])
		for i, row := range rows[1:] {
			if i > 0 {
				buf.WriteString(",")
			}
			buf.WriteString("\n  {")
			for j, key := range header {
				if j > 0 {
					buf.WriteString(", ")
				}
				k, err := json.Marshal(key)
				if err != nil {
					return err
				}
				val := ""
				if j < len(row) {
					val = row[j]
				}
				v, err := json.Marshal(val)
				if err != nil {
					return err
				}
				buf.Write(k)
				buf.WriteString(": ")
				buf.Write(v)
			}
			buf.WriteString("}")
		}
		if len(rows) > 1 {
			buf.WriteString("\n")
		}
	}
	buf.WriteString("]\n")
	return nil
}

func uniqueHeader(row []string) []string {
	out := make([]string, len(row))
	used := map[string]int{}
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		used[h]++
		if n := used[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}
		out[i] = h
	}
	return out
}

func writeXLSX(path string, sheets []sheet) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	const defaultSheet = "Sheet1"
	for i, s := range sheets {
		name := excelSheetName(s.Name, i)
		if i == 0 {
			if name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return fmt.Errorf("rename sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]any, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}
	return f.SaveAs(path)
}

var unsafeSheetChars = regexp.MustCompile(`[\\/?*\[\]:]`)

// excelSheetName strips characters Excel rejects and enforces its 31 rune limit.
func excelSheetName(name string, idx int) string {
	name = strings.TrimSpace(unsafeSheetChars.ReplaceAllString(name, "_"))
	if name == "" {
		name = "Sheet" + strconv.Itoa(idx+1)
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeSheet(name string) string {
	s := strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_.")
	if s == "" {
		return "sheet"
	}
	return s
}
