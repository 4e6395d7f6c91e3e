package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Cell is one cell of a test sheet.
type Cell struct {
	Ref   string
	Kind  string // "s" shared string, "inline", "n" number, "date" serial
	Value string
}

// Str is a shared-string cell.
func Str(ref, value string) Cell { return Cell{Ref: ref, Kind: "s", Value: value} }

// Inline is an inline-string cell.
func Inline(ref, value string) Cell { return Cell{Ref: ref, Kind: "inline", Value: value} }

// Num is a numeric cell.
func Num(ref, value string) Cell { return Cell{Ref: ref, Kind: "n", Value: value} }

// Date is a date-formatted serial cell.
func Date(ref, serial string) Cell { return Cell{Ref: ref, Kind: "date", Value: serial} }

// Sheet is a named sheet; each row lists its cells left to right.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// WriteXLSX writes a minimal workbook with the given sheets into dir and
// returns its path. Style 1 is a custom dd/mm/yyyy format.
func WriteXLSX(t *testing.T, dir, name string, sheets ...Sheet) string {
	t.Helper()

	var shared []string
	sharedIndex := map[string]int{}
	intern := func(s string) int {
		if i, ok := sharedIndex[s]; ok {
			return i
		}
		sharedIndex[s] = len(shared)
		shared = append(shared, s)
		return len(shared) - 1
	}

	files := map[string]string{}
	var sheetEls, rels strings.Builder
	for i, sh := range sheets {
		id := i + 1
		fmt.Fprintf(&sheetEls, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, sh.Name, id, id)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.xml"/>`, id, id)

		var data strings.Builder
		for _, row := range sh.Rows {
			if len(row) == 0 {
				continue
			}
			rowNum := strings.TrimLeft(row[0].Ref, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
			fmt.Fprintf(&data, `<row r="%s">`, rowNum)
			for _, c := range row {
				switch c.Kind {
				case "s":
					fmt.Fprintf(&data, `<c r="%s" t="s"><v>%d</v></c>`, c.Ref, intern(c.Value))
				case "inline":
					fmt.Fprintf(&data, `<c r="%s" t="inlineStr"><is><t>%s</t></is></c>`, c.Ref, c.Value)
				case "date":
					fmt.Fprintf(&data, `<c r="%s" s="1"><v>%s</v></c>`, c.Ref, c.Value)
				default:
					fmt.Fprintf(&data, `<c r="%s"><v>%s</v></c>`, c.Ref, c.Value)
				}
			}
			data.WriteString(`</row>`)
		}
		files[fmt.Sprintf("xl/worksheets/sheet%d.xml", id)] =
			`<?xml version="1.0" encoding="UTF-8"?><worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
				data.String() + `</sheetData></worksheet>`
	}

	files["xl/workbook.xml"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>` +
		sheetEls.String() + `</sheets></workbook>`
	files["xl/_rels/workbook.xml.rels"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels.String() + `</Relationships>`
	files["xl/styles.xml"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
		`<numFmts count="1"><numFmt numFmtId="164" formatCode="dd/mm/yyyy;@"/></numFmts>` +
		`<cellXfs count="2"><xf numFmtId="0"/><xf numFmtId="164"/></cellXfs></styleSheet>`

	var sst strings.Builder
	for _, s := range shared {
		fmt.Fprintf(&sst, `<si><t>%s</t></si>`, s)
	}
	files["xl/sharedStrings.xml"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` + sst.String() + `</sst>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
