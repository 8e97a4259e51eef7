package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/metrics"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
	"github.com/xelth-com/argoxlabels/internal/services/printer"
)

// getLabelPDF renders the label of one lot as a PDF
func (r *Router) getLabelPDF(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	format, err := printer.ParseFormat(q.Get("format"))
	if err != nil {
		respondAppError(w, err, nil)
		return
	}

	sel := lookup.Selector{BatchCode: q.Get("batch")}
	if raw := q.Get("branch"); raw != "" {
		branch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondAppError(w, apperr.New(apperr.KindMalformedInput, fmt.Sprintf("branch %q is not an integer", raw), nil), nil)
			return
		}
		sel.BranchID = branch
	}

	orderID, records, err := r.findLabels(req)
	if err != nil {
		respondAppError(w, err, nil)
		return
	}
	rec, ok := lookup.Select(records, sel)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("No label found for order %d", orderID))
		return
	}

	pdfBytes, err := printer.GenerateLabelPDF(rec, printer.DetailsURL(r.opts.PublicURL, orderID), format)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	metrics.LabelPDFsTotal.WithLabelValues(string(format)).Inc()

	// Set headers for inline display
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"etiqueta_%d_%s.pdf\"", orderID, format))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}
