package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default search parameters for the Copernicus Data Space catalogue.
const (
	DefaultCollection = "sentinel-2-l2a"
	DefaultLimit      = 500

	searchTimeout = 5 * time.Minute
)

// BBox is a geographic bounding box as min_lon, min_lat, max_lon, max_lat.
type BBox [4]float64

// ParseBBox parses "min_lon,min_lat,max_lon,max_lat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 comma-separated values, got %d", len(parts))
	}
	var b BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("parsing bbox component %q: %w", p, err)
		}
		b[i] = v
	}
	if b[0] >= b[2] || b[1] >= b[3] {
		return BBox{}, fmt.Errorf("degenerate bbox %v", b)
	}
	return b, nil
}

// Feature is one STAC item returned by the catalogue search.
type Feature struct {
	ID         string           `json:"id"`
	Geometry   Geometry         `json:"geometry"`
	BBox       []float64        `json:"bbox"`
	Properties Properties       `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// Geometry is a GeoJSON geometry; only Polygon is ingested. Coordinates
// stay raw until the WKT conversion decodes them for the declared type.
type Geometry struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"coordinates"`
}

// Properties carries the subset of STAC item properties stored per scene.
// Pointers keep absent values distinguishable from zeros so they land as
// NULL.
type Properties struct {
	Datetime          *time.Time `json:"datetime"`
	StartDatetime     *time.Time `json:"start_datetime"`
	EndDatetime       *time.Time `json:"end_datetime"`
	Platform          *string    `json:"platform"`
	Constellation     *string    `json:"constellation"`
	Instruments       []string   `json:"instruments"`
	CloudCover        *float64   `json:"eo:cloud_cover"`
	SnowCover         *float64   `json:"eo:snow_cover"`
	SunAzimuth        *float64   `json:"view:sun_azimuth"`
	SunElevation      *float64   `json:"view:sun_elevation"`
	ViewAzimuth       *float64   `json:"view:azimuth"`
	IncidenceAngle    *float64   `json:"view:incidence_angle"`
	AbsoluteOrbit     *int       `json:"sat:absolute_orbit"`
	RelativeOrbit     *int       `json:"sat:relative_orbit"`
	OrbitState        *string    `json:"sat:orbit_state"`
	ProductType       *string    `json:"product:type"`
	ProcessingLevel   *string    `json:"processing:level"`
	ProcessingVersion *string    `json:"processing:version"`
	Timeliness        *string    `json:"product:timeliness"`
	GridCode          *string    `json:"grid:code"`
	GSD               *float64   `json:"gsd"`
	Created           *time.Time `json:"created"`
	Updated           *time.Time `json:"updated"`
}

// Asset is one downloadable artifact attached to a scene.
type Asset struct {
	Type        *string  `json:"type"`
	Href        *string  `json:"href"`
	Roles       []string `json:"roles"`
	GSD         *float64 `json:"gsd"`
	FileSize    *int64   `json:"file:size"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
}

// SearchParams describes one catalogue search.
type SearchParams struct {
	BBox       BBox
	Datetime   string // "start/end" in RFC 3339
	Collection string
	Limit      int
}

type searchRequest struct {
	Collections []string  `json:"collections"`
	BBox        []float64 `json:"bbox"`
	Datetime    string    `json:"datetime"`
	Limit       int       `json:"limit"`
}

type searchResponse struct {
	Features []Feature `json:"features"`
}

// Search posts an item search to the STAC endpoint and returns the matched
// features.
func (l *Loader) Search(ctx context.Context, params SearchParams) ([]Feature, error) {
	if params.Collection == "" {
		params.Collection = DefaultCollection
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	body, err := json.Marshal(searchRequest{
		Collections: []string{params.Collection},
		BBox:        params.BBox[:],
		Datetime:    params.Datetime,
		Limit:       params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.api, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalogue search failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalogue error (status %d): %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	l.logger.Info("catalogue search completed",
		"collection", params.Collection,
		"datetime", params.Datetime,
		"features", len(result.Features))
	return result.Features, nil
}

// polygonWKT converts a GeoJSON Polygon geometry into WKT for PostGIS.
func polygonWKT(g Geometry) (string, error) {
	if g.Type != "Polygon" {
		return "", fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	var rings [][][]float64
	if err := json.Unmarshal(g.Raw, &rings); err != nil {
		return "", fmt.Errorf("decoding polygon coordinates: %w", err)
	}
	if len(rings) == 0 {
		return "", fmt.Errorf("polygon has no rings")
	}

	var b strings.Builder
	b.WriteString("POLYGON(")
	for i, ring := range rings {
		if len(ring) < 4 {
			return "", fmt.Errorf("polygon ring %d has %d points, need at least 4", i, len(ring))
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j, pt := range ring {
			if len(pt) < 2 {
				return "", fmt.Errorf("polygon ring %d point %d has %d components", i, j, len(pt))
			}
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(pt[0], 'f', -1, 64))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(pt[1], 'f', -1, 64))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
