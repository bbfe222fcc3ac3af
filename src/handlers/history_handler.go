package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
	"github.com/username/yieldmap/backend/src/services"
	"github.com/username/yieldmap/backend/src/utils"
)

type HistoryHandler struct {
	historyService services.HistoryService
}

func NewHistoryHandler(historyService services.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

type historyPageData struct {
	ListingID string
	Records   []models.PriceHistoryRecord
	Message   string
}

// HandleGetPriceHistory serves the price-history view for one listing.
// The underlying retrieval may block for the duration of the snapshot poll
// loop; repeat requests are answered from the retrieval cache.
func (h *HistoryHandler) HandleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		utils.SendJSONError(w, "listing id required", http.StatusBadRequest)
		return
	}

	result, err := h.historyService.GetPriceHistory(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			utils.SendJSONError(w, "unknown listing id", http.StatusNotFound)
			return
		}
		logger.L.Error("Price history request failed", "listingID", listingID, "error", err)
		utils.SendJSONError(w, "failed to retrieve price history", http.StatusInternalServerError)
		return
	}

	switch result.State {
	case models.HistoryReady:
		h.renderHistoryPage(w, http.StatusOK, historyPageData{
			ListingID: listingID,
			Records:   result.Records,
		})
	case models.HistoryEmpty:
		h.renderHistoryPage(w, http.StatusOK, historyPageData{
			ListingID: listingID,
			Message:   "No historic data available",
		})
	default:
		h.renderHistoryPage(w, failureStatusCode(result.Reason), historyPageData{
			ListingID: listingID,
			Message:   "Price history retrieval failed: " + result.Reason,
		})
	}
}

// Trigger and network failures are the remote service's fault; parse and
// timeout failures are ours.
func failureStatusCode(reason string) int {
	switch reason {
	case services.ReasonTrigger, services.ReasonNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *HistoryHandler) renderHistoryPage(w http.ResponseWriter, statusCode int, data historyPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := historyPageTemplate.Execute(w, data); err != nil {
		logger.L.Error("Failed to render price history page", "listingID", data.ListingID, "error", err)
	}
}

var historyPageTemplate = template.Must(template.New("price_history").Funcs(template.FuncMap{
	"money": utils.FormatMoney,
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Price History</title>
</head>
<body>
	<h1>Price History for Listing {{.ListingID}}</h1>
	{{if .Message}}
	<p>{{.Message}}</p>
	{{else}}
	<table border="1" cellpadding="4">
		<tr><th>Date</th><th>Price</th></tr>
		{{range .Records}}
		<tr><td>{{.Date}}</td><td>{{money .Price}}</td></tr>
		{{end}}
	</table>
	{{end}}
	<p><a href="/">Back to map</a></p>
</body>
</html>
`))
