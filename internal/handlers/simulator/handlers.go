package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	httpx "genio/internal/http"
	"genio/internal/loan"
	"genio/internal/money"
	"genio/internal/services/cache"
	"genio/internal/services/dataloader"
	"genio/internal/session"
	"genio/internal/templates"
)

// statementTTL is how long an issued statement can be reopened for printing.
const statementTTL = 30 * time.Minute

var (
	loader     *dataloader.DataLoader
	renderer   *templates.Renderer
	statements cache.Cache
	now        func() time.Time   = time.Now
	log        logrus.FieldLogger = logrus.StandardLogger()
)

// Initialize sets up the simulator package with required dependencies
func Initialize(l *dataloader.DataLoader, r *templates.Renderer, c cache.Cache, logger logrus.FieldLogger) {
	loader = l
	renderer = r
	statements = c
	if logger != nil {
		log = logger
	}
}

// RegisterRoutes registers the loan simulator routes.
func RegisterRoutes(r chi.Router, sm *session.Manager) {
	r.With(sm.RequirePage).Get("/emprestimo", handleLoan)
	r.With(sm.RequireAPI(httpx.StatusError, true)).Post("/emprestimo/simular", handleQuote)
	r.With(sm.RequirePage).Post("/emprestimo/comprovante", handleProceed)
	r.With(sm.RequirePage).Get("/emprestimo/comprovante/{protocol}", handleStatement)
}

// loanTerms reads the charges sheet, falling back to the default terms.
func loanTerms() loan.Terms {
	terms, err := loader.LoadTerms()
	if err != nil {
		log.WithError(err).Warn("Warning: using default loan terms")
		return loan.DefaultTerms()
	}
	return terms
}

// simulatorFor builds the simulator of user. The limit always comes from
// the server-side balances, never from the form.
func simulatorFor(user string) (*loan.Simulator, loan.Terms) {
	terms := loanTerms()
	cfg := terms.Config(loader.Balances(user).AppliedOrZero())
	return loan.NewSimulator(cfg).WithClock(now), terms
}

func draftFrom(r *http.Request) loan.Draft {
	return loan.Draft{
		Amount:        r.FormValue("valor"),
		Installments:  r.FormValue("parcelas"),
		PixKey:        r.FormValue("pix_chave"),
		PixCPF:        r.FormValue("pix_cpf"),
		PixName:       r.FormValue("pix_nome"),
		TermsAccepted: httpx.FormBool(r, "aceite"),
	}
}

func pageData(user string, sim *loan.Simulator, terms loan.Terms) map[string]any {
	cfg := sim.Config()
	name := loader.NameByCPF(user)

	maxDate := ""
	if cfg.MaxEndDate != nil {
		maxDate = loan.FormatDate(*cfg.MaxEndDate)
	}

	return map[string]any{
		"Title":           "Empréstimo",
		"ActiveTab":       "emprestimo",
		"User":            user,
		"Name":            name,
		"Balances":        loader.Balances(user),
		"Config":          cfg,
		"Attrs":           cfg.Attrs(),
		"Limit":           money.FormatBRL(cfg.Limit),
		"MonthlyRate":     money.FormatRate(cfg.MonthlyRate),
		"MaxValuePct":     money.FormatRate(terms.MaxValuePct.InexactFloat64()),
		"MaxInstallments": cfg.MaxInstallments,
		"MaxDate":         maxDate,
	}
}

func handleLoan(w http.ResponseWriter, r *http.Request) {
	user := session.UserFrom(r.Context())
	if err := loader.RefreshParticipants(); err != nil {
		log.WithError(err).Warn("Warning: participants refresh failed")
	}

	sim, terms := simulatorFor(user)
	data := pageData(user, sim, terms)
	data["Draft"] = loan.Draft{}
	data["CanProceed"] = false
	httpx.RenderTemplate(w, renderer, "emprestimo", data)
}

// quoteResponse is the live summary plus the state of the proceed button.
type quoteResponse struct {
	loan.Summary
	CanProceed bool `json:"can_proceed"`
}

// handleQuote answers the live summary for the typed amount and
// installments.
func handleQuote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusError)
		return
	}
	sim, _ := simulatorFor(session.UserFrom(r.Context()))
	draft := draftFrom(r)
	httpx.WriteJSON(w, http.StatusOK, quoteResponse{
		Summary:    sim.Update(draft),
		CanProceed: draft.CanProceed(),
	})
}

// handleProceed issues the statement. A draft that cannot proceed is sent
// back to the form with the error shown.
func handleProceed(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	user := session.UserFrom(r.Context())
	sim, terms := simulatorFor(user)
	draft := draftFrom(r)

	stmt, err := sim.Proceed(draft)
	if err != nil {
		if httpx.WantsJSON(r) {
			httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"status": "erro", "error": err.Error()})
			return
		}
		data := pageData(user, sim, terms)
		data["Draft"] = draft
		data["Summary"] = sim.Update(draft)
		data["Error"] = err.Error()
		data["CanProceed"] = draft.CanProceed()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		httpx.RenderTemplate(w, renderer, "emprestimo", data)
		return
	}

	log.WithFields(logrus.Fields{
		"protocol":     stmt.Protocol,
		"installments": stmt.Installments,
	}).Info("loan statement issued")
	saveStatement(r.Context(), user, stmt)

	if httpx.WantsJSON(r) {
		httpx.WriteJSON(w, http.StatusOK, stmt)
		return
	}
	renderStatement(w, r, user, stmt)
}

// handleStatement reopens an issued statement; ?print=1 selects the print
// layout.
func handleStatement(w http.ResponseWriter, r *http.Request) {
	user := session.UserFrom(r.Context())
	protocol := strings.ToUpper(chi.URLParam(r, "protocol"))

	stmt, ok := loadStatement(r.Context(), user, protocol)
	if !ok {
		httpx.ErrorResponse(w, "Comprovante não encontrado", http.StatusNotFound)
		return
	}
	renderStatement(w, r, user, stmt)
}

func renderStatement(w http.ResponseWriter, r *http.Request, user string, stmt loan.Statement) {
	httpx.RenderTemplate(w, renderer, "comprovante", map[string]any{
		"Title":     "Comprovante",
		"ActiveTab": "emprestimo",
		"User":      user,
		"Name":      loader.NameByCPF(user),
		"Statement": stmt,
		"EndDate":   loan.FormatDate(stmt.EndDate),
		"IssuedAt":  stmt.IssuedAt.Format("02/01/2006 15:04"),
		"Print":     r.URL.Query().Get("print") == "1",
	})
}

func statementKey(user, protocol string) string {
	return "comprovante:" + user + ":" + protocol
}

func saveStatement(ctx context.Context, user string, stmt loan.Statement) {
	if statements == nil {
		return
	}
	data, err := json.Marshal(stmt)
	if err != nil {
		return
	}
	if err := statements.Set(ctx, statementKey(user, stmt.Protocol), data, statementTTL); err != nil {
		log.WithError(err).Warn("Warning: could not keep statement")
	}
}

func loadStatement(ctx context.Context, user, protocol string) (loan.Statement, bool) {
	var stmt loan.Statement
	if statements == nil {
		return stmt, false
	}
	data, ok := statements.Get(ctx, statementKey(user, protocol))
	if !ok {
		return stmt, false
	}
	if err := json.Unmarshal(data, &stmt); err != nil {
		return stmt, false
	}
	return stmt, true
}
