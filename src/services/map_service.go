// backend/src/services/map_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"github.com/username/yieldmap/backend/src/database"
	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
	"github.com/username/yieldmap/backend/src/processors"
	"github.com/username/yieldmap/backend/src/utils"
)

// mapMarker is one renderable listing marker. It is embedded as JSON into
// the map page's script block, so fields carry json tags.
type mapMarker struct {
	ID            string  `json:"id"`
	Latitude      float64 `json:"lat"`
	Longitude     float64 `json:"lng"`
	Color         string  `json:"color"`
	StreetAddress string  `json:"address"`
	Price         string  `json:"price"`
	Bedrooms      string  `json:"bedrooms"`
	Bathrooms     string  `json:"bathrooms"`
	LivingArea    string  `json:"livingArea"`
	GrossYield    string  `json:"grossYield"`
	Zestimate     string  `json:"zestimate"`
	RentZestimate string  `json:"rentZestimate"`
	SourceURL     string  `json:"url"`
}

type mapPageData struct {
	CenterLat float64
	CenterLng float64
	Markers   []mapMarker
}

// mapServiceImpl renders the properties map once and serves the persisted
// artifact thereafter. A rebuild only happens if the artifact file was
// removed externally.
type mapServiceImpl struct {
	artifactPath string
	mu           sync.Mutex
}

func NewMapService(artifactPath string) MapService {
	return &mapServiceImpl{artifactPath: artifactPath}
}

// MapArtifact returns the path of the rendered map HTML, building it first
// if it does not exist yet. Concurrent first-requests are serialized so the
// artifact is written exactly once.
func (s *mapServiceImpl) MapArtifact() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.artifactPath); err == nil {
		return s.artifactPath, nil
	}

	logger.L.Info("Map artifact missing, rendering", "path", s.artifactPath)
	listings, err := database.AllListings()
	if err != nil {
		return "", fmt.Errorf("loading listings for map: %w", err)
	}

	data := buildMapPageData(listings)
	var buf bytes.Buffer
	if err := mapPageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering map template: %w", err)
	}

	if err := atomicWriteFile(s.artifactPath, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing map artifact: %w", err)
	}
	logger.L.Info("Map artifact rendered", "path", s.artifactPath, "markers", len(data.Markers))
	return s.artifactPath, nil
}

// buildMapPageData filters out listings without coordinates, classifies the
// rest, and centers the map on the mean coordinate.
func buildMapPageData(listings []models.Listing) mapPageData {
	var data mapPageData
	var latSum, lngSum float64

	for _, l := range listings {
		if !l.HasCoordinates() {
			continue
		}
		latSum += l.Latitude
		lngSum += l.Longitude

		category := processors.Classify(l)
		data.Markers = append(data.Markers, mapMarker{
			ID:            l.ID,
			Latitude:      l.Latitude,
			Longitude:     l.Longitude,
			Color:         processors.MarkerColor(category),
			StreetAddress: l.StreetAddress,
			Price:         utils.FormatMoney(l.Price),
			Bedrooms:      utils.FormatCount(l.Bedrooms),
			Bathrooms:     utils.FormatCount(l.Bathrooms),
			LivingArea:    utils.FormatCount(l.LivingArea),
			GrossYield:    utils.FormatPercent(processors.GrossYield(l)),
			Zestimate:     utils.FormatMoney(l.Zestimate),
			RentZestimate: utils.FormatMoney(l.RentZestimate),
			SourceURL:     l.SourceURL,
		})
	}

	if n := len(data.Markers); n > 0 {
		data.CenterLat = latSum / float64(n)
		data.CenterLng = lngSum / float64(n)
	}
	return data
}

// atomicWriteFile writes via a temp file in the target directory and
// renames it into place, so a concurrent reader never sees a partial file.
func atomicWriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".map-*.html")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var mapPageTemplate = template.Must(template.New("properties_map").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Rental Yield Map</title>
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
	<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css">
	<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css">
	<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
	<script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
	<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
	<div id="map"></div>
	<script>
		var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLng}}], 13);
		L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
			attribution: '&copy; OpenStreetMap contributors'
		}).addTo(map);

		var cluster = L.markerClusterGroup();
		var markers = {{.Markers}};

		function showLoadingAndRedirect(id) {
			document.getElementById('button-' + id).style.display = 'none';
			document.getElementById('loading-' + id).style.display = 'block';
			window.location.href = '/price-history/' + id;
		}

		markers.forEach(function (m) {
			var popup =
				'<b>Address:</b> ' + m.address + '<br>' +
				'<b>Price:</b> ' + m.price + '<br>' +
				'<b>Bedrooms:</b> ' + m.bedrooms + '<br>' +
				'<b>Bathrooms:</b> ' + m.bathrooms + '<br>' +
				'<b>Living Area:</b> ' + m.livingArea + '<br>' +
				'<b>Gross Rental Yield:</b> ' + m.grossYield + '<br>' +
				'<b>Zestimate:</b> ' + m.zestimate + '<br>' +
				'<b>Rental Zestimate:</b> ' + m.rentZestimate + '<br>' +
				'<a href="' + m.url + '" target="_blank">View Property</a><br>' +
				'<button id="button-' + m.id + '" onclick="showLoadingAndRedirect(\'' + m.id + '\')">Show Price History</button>' +
				'<div id="loading-' + m.id + '" style="display: none;">Loading&hellip;</div>';
			cluster.addLayer(L.circleMarker([m.lat, m.lng], {
				radius: 8,
				color: m.color,
				fillColor: m.color,
				fillOpacity: 0.8
			}).bindPopup(popup));
		});
		map.addLayer(cluster);
	</script>
</body>
</html>
`))
