// Package workbook reads cell values out of .xlsx files: sheet names,
// shared and inline strings, and date-formatted numbers.
package workbook

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Workbook is an opened .xlsx file. Its contents are read into memory so
// the source file can be replaced while it is in use.
type Workbook struct {
	files  map[string]*zip.File
	sheets []sheetRef
	shared []string
	dates  map[int]bool
}

type sheetRef struct {
	name string
	part string
}

// Open reads the workbook at path. The whole file is loaded up front, so a
// spreadsheet application saving over it does not break the read.
func Open(filename string) (*Workbook, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses a workbook from r.
func Read(r io.ReaderAt, size int64) (*Workbook, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx archive: %w", err)
	}

	wb := &Workbook{files: make(map[string]*zip.File), dates: make(map[int]bool)}
	for _, f := range zr.File {
		wb.files[strings.TrimPrefix(f.Name, "/")] = f
	}

	if err := wb.readSheets(); err != nil {
		return nil, err
	}
	if err := wb.readSharedStrings(); err != nil {
		return nil, err
	}
	if err := wb.readStyles(); err != nil {
		return nil, err
	}
	return wb, nil
}

func (wb *Workbook) document(name string) (*etree.Document, error) {
	f, ok := wb.files[name]
	if !ok {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return doc, nil
}

func (wb *Workbook) readSheets() error {
	doc, err := wb.document("xl/workbook.xml")
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("xl/workbook.xml missing")
	}

	targets := make(map[string]string)
	rels, err := wb.document("xl/_rels/workbook.xml.rels")
	if err != nil {
		return err
	}
	if rels != nil {
		for _, rel := range rels.FindElements("//Relationship") {
			target := rel.SelectAttrValue("Target", "")
			if strings.HasPrefix(target, "/") {
				target = strings.TrimPrefix(target, "/")
			} else {
				target = path.Join("xl", target)
			}
			targets[rel.SelectAttrValue("Id", "")] = target
		}
	}

	for i, sheet := range doc.FindElements("//sheets/sheet") {
		ref := sheetRef{name: sheet.SelectAttrValue("name", "")}
		for _, attr := range sheet.Attr {
			if attr.Key == "id" && attr.Space != "" {
				ref.part = targets[attr.Value]
			}
		}
		if ref.part == "" {
			ref.part = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		wb.sheets = append(wb.sheets, ref)
	}
	return nil
}

func (wb *Workbook) readSharedStrings() error {
	doc, err := wb.document("xl/sharedStrings.xml")
	if err != nil || doc == nil {
		return err
	}
	for _, si := range doc.FindElements("//sst/si") {
		wb.shared = append(wb.shared, richText(si))
	}
	return nil
}

// richText concatenates every <t> under e, covering both plain and
// run-formatted strings while skipping phonetic runs.
func richText(e *etree.Element) string {
	var sb strings.Builder
	for _, child := range e.ChildElements() {
		switch child.Tag {
		case "t":
			sb.WriteString(child.Text())
		case "r":
			if t := child.SelectElement("t"); t != nil {
				sb.WriteString(t.Text())
			}
		}
	}
	return sb.String()
}

// builtin number formats that render as dates.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

var (
	quotedLiteral = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)
	dateToken     = regexp.MustCompile(`(?i)[dmyhs]`)
)

func (wb *Workbook) readStyles() error {
	doc, err := wb.document("xl/styles.xml")
	if err != nil || doc == nil {
		return err
	}

	custom := make(map[int]bool)
	for _, nf := range doc.FindElements("//numFmts/numFmt") {
		id, err := strconv.Atoi(nf.SelectAttrValue("numFmtId", ""))
		if err != nil {
			continue
		}
		code := quotedLiteral.ReplaceAllString(nf.SelectAttrValue("formatCode", ""), "")
		custom[id] = dateToken.MatchString(code)
	}

	for i, xf := range doc.FindElements("//cellXfs/xf") {
		id, err := strconv.Atoi(xf.SelectAttrValue("numFmtId", "0"))
		if err != nil {
			continue
		}
		if builtinDateFormats[id] || custom[id] {
			wb.dates[i] = true
		}
	}
	return nil
}

// SheetNames lists the sheets in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		names[i] = s.name
	}
	return names
}

// Rows returns the named sheet as a dense grid: Rows()[r][c] is the cell
// at row r+1, column c+1. Missing cells are empty strings and every row
// has the width of the widest one.
func (wb *Workbook) Rows(sheet string) ([][]string, error) {
	var part string
	for _, s := range wb.sheets {
		if s.name == sheet {
			part = s.part
		}
	}
	if part == "" {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	doc, err := wb.document(part)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("sheet %q: part %s missing", sheet, part)
	}

	var rows [][]string
	width := 0
	nextRow := 1
	for _, row := range doc.FindElements("//sheetData/row") {
		r := nextRow
		if n, err := strconv.Atoi(row.SelectAttrValue("r", "")); err == nil && n > 0 {
			r = n
		}
		nextRow = r + 1
		for len(rows) < r {
			rows = append(rows, nil)
		}

		var cells []string
		nextCol := 1
		for _, c := range row.SelectElements("c") {
			col := nextCol
			if ref := c.SelectAttrValue("r", ""); ref != "" {
				if n := columnNumber(ref); n > 0 {
					col = n
				}
			}
			nextCol = col + 1
			for len(cells) < col {
				cells = append(cells, "")
			}
			cells[col-1] = wb.cellValue(c)
		}
		rows[r-1] = cells
		width = max(width, len(cells))
	}

	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	return rows, nil
}

func (wb *Workbook) cellValue(c *etree.Element) string {
	v := ""
	if e := c.SelectElement("v"); e != nil {
		v = e.Text()
	}

	switch c.SelectAttrValue("t", "n") {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || i < 0 || i >= len(wb.shared) {
			return ""
		}
		return wb.shared[i]
	case "inlineStr":
		if is := c.SelectElement("is"); is != nil {
			return richText(is)
		}
		return ""
	case "b":
		if v == "1" {
			return "TRUE"
		}
		return "FALSE"
	case "str", "e":
		return v
	}

	if v == "" {
		return ""
	}
	style, _ := strconv.Atoi(c.SelectAttrValue("s", "0"))
	if wb.dates[style] {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return SerialDate(f)
		}
	}
	return v
}

// columnNumber turns the letters of a cell reference into a 1-based column
// number: "A1" is 1, "U190" is 21, "AA3" is 27.
func columnNumber(ref string) int {
	n := 0
	for _, r := range ref {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 'A' || r > 'Z' {
			break
		}
		n = n*26 + int(r-'A'+1)
	}
	return n
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// SerialDate renders an Excel serial day number as "2006-01-02", adding
// the time of day when there is one.
func SerialDate(serial float64) string {
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
	if secs == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
