package templates

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"genio/internal/loan"
	"genio/internal/money"
)

// Renderer handles template rendering
type Renderer struct {
	templates *template.Template
	debug     bool
	baseDir   string
	log       logrus.FieldLogger
}

// New creates a new template renderer
func New(templateDir string, debug bool, log logrus.FieldLogger) (*Renderer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Renderer{
		debug:   debug,
		baseDir: templateDir,
		log:     log,
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// getFuncMap returns the template function map
func getFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatBRL":     money.FormatBRL,
		"formatDecimal": formatDecimal,
		"formatPercent": money.FormatPercent,
		"formatRate":    money.FormatRate,
		"formatDate":    formatDate,
		"formatDateISO": formatDateISO,
		"formatCPF":     loan.FormatCPF,
		"firstName":     firstName,
		"toJSON":        toJSON,
		"colorClass":    colorClass,
		"deref":         deref,
		"lower":         strings.ToLower,
		"upper":         strings.ToUpper,
		"trimSpace":     strings.TrimSpace,
		"now":           time.Now,
	}
}

// loadTemplates parses all templates with strict validation
func (r *Renderer) loadTemplates() error {
	funcMap := getFuncMap()
	tmpl := template.New("").Funcs(funcMap)

	// Collect all template files
	var templateFiles []string
	for _, subdir := range []string{"layouts", "pages", "partials"} {
		subPattern := filepath.Join(r.baseDir, subdir, "*.html")
		matches, err := filepath.Glob(subPattern)
		if err != nil {
			return fmt.Errorf("error globbing %s: %w", subPattern, err)
		}
		templateFiles = append(templateFiles, matches...)
	}

	if len(templateFiles) == 0 {
		return fmt.Errorf("no template files found in %s", r.baseDir)
	}

	// Parse each template file individually for better error reporting
	var parseErrors []string
	for _, file := range templateFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("  %s: failed to read: %v", file, err))
			continue
		}

		if _, err := tmpl.New(filepath.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}

	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			r.log.Error("template parsing error" + e)
		}
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	// Validate template references
	if err := r.validateTemplateReferences(tmpl, templateFiles); err != nil {
		return err
	}

	r.templates = tmpl
	r.log.WithField("files", len(templateFiles)).Debug("templates loaded")
	return nil
}

var lineNumberRe = regexp.MustCompile(`:(\d+):`)

// formatTemplateError formats a template error with file context
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  File: %s\n", file)

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)
	if lineNum <= 0 {
		fmt.Fprintf(&sb, "  Error: %s\n", errStr)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Line: %d\n  Error: %s\n  Context:\n", lineNum, errStr)
	lines := strings.Split(content, "\n")
	start := max(0, lineNum-3)
	end := min(len(lines), lineNum+2)
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == lineNum {
			marker = ">>>"
		}
		fmt.Fprintf(&sb, "    %s %4d | %s\n", marker, i+1, lines[i])
	}
	return sb.String()
}

// extractLineNumber tries to extract a line number from a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) >= 2 {
		var lineNum int
		fmt.Sscanf(matches[1], "%d", &lineNum)
		return lineNum
	}
	return 0
}

var templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)

// validateTemplateReferences checks that all {{template "name"}} calls reference defined templates
func (r *Renderer) validateTemplateReferences(tmpl *template.Template, files []string) error {
	definedTemplates := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			definedTemplates[t.Name()] = true
		}
	}

	var refErrors []string
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			for _, match := range templateCallRe.FindAllStringSubmatch(line, -1) {
				if !definedTemplates[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf("%s:%d: undefined template %q", file, lineNum, match[1]))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		for _, e := range refErrors {
			r.log.Error(e)
		}
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}

	return nil
}

// Reload re-parses the template directory.
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

// Render renders a full page
func (r *Renderer) Render(w http.ResponseWriter, name string, data any) error {
	// In debug mode, reload templates on each request
	if r.debug {
		if err := r.Reload(); err != nil {
			r.log.WithError(err).Error("reloading templates")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := r.templates.ExecuteTemplate(w, name, data); err != nil {
		r.log.WithError(err).WithField("template", name).Error("rendering template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	return nil
}

// ExecuteTemplate executes a template to a writer
func (r *Renderer) ExecuteTemplate(w io.Writer, name string, data any) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Template functions

func formatDecimal(d any) string {
	switch v := d.(type) {
	case decimal.Decimal:
		return money.FormatDecimal(v)
	case *decimal.Decimal:
		if v == nil {
			return "-"
		}
		return money.FormatDecimal(*v)
	}
	return "-"
}

func formatDate(t any) string {
	switch v := t.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("02/01/2006")
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatDate(*v)
	}
	return ""
}

func formatDateISO(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// firstName returns the first word of a full name, capitalised.
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	first := []rune(strings.ToLower(fields[0]))
	return strings.ToUpper(string(first[:1])) + string(first[1:])
}

// toJSON embeds v in a script element. json.Marshal escapes <, > and &,
// so the output cannot close the element.
func toJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

func colorClass(v any) string {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case decimal.Decimal:
		f = val.InexactFloat64()
	case *decimal.Decimal:
		if val != nil {
			f = val.InexactFloat64()
		}
	}
	switch {
	case f > 0:
		return "positivo"
	case f < 0:
		return "negativo"
	}
	return "neutro"
}

// deref safely dereferences a pointer, returning 0 if nil
func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
