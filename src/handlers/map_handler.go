package handlers

import (
	"net/http"

	"github.com/username/yieldmap/backend/src/services"
	"github.com/username/yieldmap/backend/src/utils"
)

type MapHandler struct {
	mapService services.MapService
}

func NewMapHandler(mapService services.MapService) *MapHandler {
	return &MapHandler{mapService: mapService}
}

// HandleGetMap serves the rendered properties map, building the artifact on
// the first request after deployment.
func (h *MapHandler) HandleGetMap(w http.ResponseWriter, r *http.Request) {
	path, err := h.mapService.MapArtifact()
	if err != nil {
		utils.SendJSONError(w, "failed to build properties map", http.StatusInternalServerError)
		return
	}
	http.ServeFile(w, r, path)
}
