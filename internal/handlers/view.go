package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
	"github.com/xelth-com/argoxlabels/internal/services/printer"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("02/01/2006")
	},
	"shortComp": printer.ShortComposition,
	"pdfURL": func(rec models.ProductionLabel, format string) string {
		q := url.Values{}
		q.Set("format", format)
		q.Set("branch", strconv.FormatInt(rec.BranchID, 10))
		if rec.BatchCode != "" {
			q.Set("batch", rec.BatchCode)
		}
		return fmt.Sprintf("/api/labels/%d/pdf?%s", rec.OrderID, q.Encode())
	},
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title   string
	Query   string
	OrderID int64
	Message string
	Records []models.ProductionLabel
}

func renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("❌ Failed to render %s page: %v", name, err)
	}
}

// viewLabel is the page the QR code points to
func (r *Router) viewLabel(w http.ResponseWriter, req *http.Request) {
	orderID, records, err := r.findLabels(req)
	data := pageData{Title: "Detalhes do produto", OrderID: orderID, Records: records}

	switch {
	case apperr.Is(err, apperr.KindMalformedInput):
		data.Message = "O código da OP é inválido."
		renderPage(w, http.StatusBadRequest, "view", data)
	case err != nil:
		log.Printf("❌ Lookup for view page failed: %v", err)
		data.Message = "Erro ao carregar detalhes do produto."
		data.Records = nil
		renderPage(w, http.StatusServiceUnavailable, "view", data)
	case len(records) == 0:
		data.Message = fmt.Sprintf("Produto com OP %d não encontrado.", orderID)
		renderPage(w, http.StatusNotFound, "view", data)
	default:
		data.Title = fmt.Sprintf("OP %d", orderID)
		renderPage(w, http.StatusOK, "view", data)
	}
}

// generatorPage searches an order and links to its labels
func (r *Router) generatorPage(w http.ResponseWriter, req *http.Request) {
	query := strings.TrimSpace(req.URL.Query().Get("op"))
	data := pageData{Title: "Gerador de Etiquetas Argox", Query: query}
	if query == "" {
		renderPage(w, http.StatusOK, "generator", data)
		return
	}

	orderID, err := lookup.ParseOrderID(query)
	if err != nil {
		data.Message = "O código da OP é inválido."
		renderPage(w, http.StatusOK, "generator", data)
		return
	}
	if r.finder == nil {
		data.Message = "Consulta indisponível neste servidor."
		renderPage(w, http.StatusOK, "generator", data)
		return
	}

	records, err := r.finder.Find(req.Context(), orderID)
	switch {
	case err != nil:
		log.Printf("❌ Lookup for generator page failed: %v", err)
		data.Message = "Erro ao conectar com o banco de dados."
	case len(records) == 0:
		data.Message = "OP não encontrada no banco de dados. Você já importou os dados?"
	default:
		data.Records = records
	}
	renderPage(w, http.StatusOK, "generator", data)
}
