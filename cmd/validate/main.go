// Package main provides a CLI tool for validating genio server endpoints.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"genio/internal/loan"
)

type endpoint struct {
	path        string
	method      string
	form        url.Values
	auth        bool
	status      int
	contentType string
	contains    []string
	check       func(body string) error
}

var endpoints = []endpoint{
	// Public
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status"`}},
	{path: "/", method: "GET", contentType: "text/html", contains: []string{`name="usuario"`}},
	{path: "/?msg=sessao_expirada", method: "GET", contentType: "text/html", contains: []string{"Sua sessão expirou"}},

	// Session gate
	{path: "/session/ping", method: "GET", status: http.StatusUnauthorized, contentType: "application/json", contains: []string{`"expired"`}},
	{path: "/evolucao/dados", method: "GET", status: http.StatusUnauthorized, contentType: "application/json", contains: []string{"[]"}},

	// Pages
	{path: "/dashboard", method: "GET", auth: true, contentType: "text/html", contains: []string{"evolucaoChart"}},
	{path: "/dashboard?chart=open&mode=bar", method: "GET", auth: true, contentType: "text/html", contains: []string{"chart-panel is-open"}},
	{path: "/emprestimo", method: "GET", auth: true, contentType: "text/html", contains: []string{"data-limit", "data-monthly-rate"}, check: checkLoanPanel},

	// Polling
	{path: "/relatorio/atualizar", method: "GET", auth: true, contentType: "application/json", contains: nil},
	{path: "/informacoes/atualizar", method: "GET", auth: true, contentType: "application/json", contains: nil},
	{path: "/evolucao/dados", method: "GET", auth: true, contentType: "application/json", contains: nil},
	{path: "/session/ping", method: "GET", auth: true, contentType: "application/json", contains: []string{`"ok"`}},

	// Chart
	{path: "/evolucao/grafico.png", method: "GET", auth: true, contentType: "image/png", contains: nil},
	{path: "/evolucao/grafico.svg?mode=bar", method: "GET", auth: true, contentType: "image/svg+xml", contains: []string{"<svg"}},
	{path: "/evolucao/tooltip?x=200", method: "GET", auth: true, contentType: "application/json", contains: []string{`"index"`}},

	// Loan
	{path: "/emprestimo/simular", method: "POST", form: url.Values{"valor": {"100"}, "parcelas": {"2"}}, auth: true, contentType: "application/json", contains: []string{`"total"`}},

	// API
	{path: "/api/files", method: "GET", auth: true, contentType: "application/json", contains: nil},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	base := flag.String("url", "http://localhost:5000", "Base URL of the server to validate")
	user := flag.String("user", os.Getenv("GENIO_VALIDATE_USER"), "CPF to log in with")
	password := flag.String("password", os.Getenv("GENIO_VALIDATE_PASSWORD"), "Password to log in with")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	flag.Parse()

	anonymous := newClient(*timeout)
	authed := newClient(*timeout)

	fmt.Printf("Validating server at %s\n", *base)

	loggedIn := false
	if *user != "" {
		if err := login(authed, *base, *user, *password); err != nil {
			fmt.Printf("FAIL login: %v\n", err)
		} else {
			loggedIn = true
		}
	} else {
		fmt.Println("No -user given, skipping endpoints that need a session")
	}

	var selected []endpoint
	for _, ep := range endpoints {
		if ep.auth && !loggedIn {
			continue
		}
		selected = append(selected, ep)
	}
	fmt.Printf("Testing %d endpoints...\n\n", len(selected))

	var passed, failed int
	var results []result

	for _, ep := range selected {
		client := anonymous
		if ep.auth {
			client = authed
		}
		r := validateEndpoint(client, *base, ep, *verbose)
		results = append(results, r)

		want := ep.status
		if want == 0 {
			want = http.StatusOK
		}

		if r.err != nil {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Error: %v\n", r.err)
		} else if r.status != want {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Status: %d (expected %d)\n", r.status, want)
		} else {
			passed++
			if *verbose {
				fmt.Printf("PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 || (*user != "" && !loggedIn) {
		os.Exit(1)
	}
}

func newClient(timeout int) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
		Jar:     jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func login(client *http.Client, baseURL, user, password string) error {
	form := url.Values{"usuario": {user}, "senha": {password}}
	resp, err := client.PostForm(baseURL+"/", form)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusSeeOther {
		return fmt.Errorf("status %d (expected %d)", resp.StatusCode, http.StatusSeeOther)
	}
	return nil
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint, verbose bool) result {
	start := time.Now()

	var body io.Reader
	if ep.form != nil {
		body = strings.NewReader(ep.form.Encode())
	}
	req, err := http.NewRequest(ep.method, baseURL+ep.path, body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}
	if ep.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	duration := time.Since(start)

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: duration,
		body:     string(data),
	}
	if verbose && resp.StatusCode >= 400 {
		fmt.Printf("     %s %s -> %d %s\n", ep.method, ep.path, resp.StatusCode, strings.TrimSpace(r.body))
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js any
		if err := json.Unmarshal(data, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(r.body, needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	if ep.check != nil {
		r.err = ep.check(r.body)
	}

	return r
}

// checkLoanPanel parses the loan panel's data-* attributes back into a
// loan.Config.
func checkLoanPanel(body string) error {
	cfg := loan.ConfigFromAttrs(loan.ScanAttrs(body))
	switch {
	case cfg.MonthlyRate <= 0:
		return errors.New("loan panel has no monthly rate")
	case cfg.MaxInstallments <= 0:
		return errors.New("loan panel allows no installments")
	case cfg.Limit < 0:
		return errors.New("loan panel has a negative limit")
	}
	return nil
}
