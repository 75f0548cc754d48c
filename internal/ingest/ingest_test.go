package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const sampleFeature = `{
  "id": "S2A_MSIL2A_20240615T100031_N0510_R122_T32TQM_20240615T134849",
  "geometry": {
    "type": "Polygon",
    "coordinates": [[[11.0, 42.3], [12.1, 42.3], [12.1, 43.2], [11.0, 43.2], [11.0, 42.3]]]
  },
  "bbox": [11.0, 42.3, 12.1, 43.2],
  "properties": {
    "datetime": "2024-06-15T10:00:31.024Z",
    "platform": "sentinel-2a",
    "constellation": "sentinel-2",
    "instruments": ["msi"],
    "eo:cloud_cover": 3.52,
    "sat:relative_orbit": 122,
    "sat:orbit_state": "descending",
    "processing:level": "Level-2A",
    "grid:code": "MGRS-32TQM",
    "gsd": 10
  },
  "assets": {
    "TCI_10m": {
      "type": "image/jp2",
      "href": "https://example.org/TCI_10m.jp2",
      "roles": ["data"],
      "gsd": 10,
      "file:size": 125829120
    },
    "thumbnail": {
      "type": "image/jpeg",
      "href": "https://example.org/thumb.jpg",
      "roles": ["thumbnail"]
    }
  }
}`

func TestParseBBox(t *testing.T) {
	t.Parallel()

	b, err := ParseBBox("6.6, 36.6, 18.5, 47.1")
	if err != nil {
		t.Fatalf("ParseBBox() error = %v", err)
	}
	if b != (BBox{6.6, 36.6, 18.5, 47.1}) {
		t.Errorf("ParseBBox() = %v", b)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "12,2,3,4", "1,9,3,4"} {
		if _, err := ParseBBox(bad); err == nil {
			t.Errorf("ParseBBox(%q) accepted", bad)
		}
	}
}

func TestFeatureDecoding(t *testing.T) {
	t.Parallel()

	var f Feature
	if err := json.Unmarshal([]byte(sampleFeature), &f); err != nil {
		t.Fatalf("decoding feature: %v", err)
	}

	p := f.Properties
	if p.Datetime == nil || !p.Datetime.Equal(time.Date(2024, 6, 15, 10, 0, 31, 24000000, time.UTC)) {
		t.Errorf("datetime = %v", p.Datetime)
	}
	if p.CloudCover == nil || *p.CloudCover != 3.52 {
		t.Errorf("cloud cover = %v", p.CloudCover)
	}
	if p.RelativeOrbit == nil || *p.RelativeOrbit != 122 {
		t.Errorf("relative orbit = %v", p.RelativeOrbit)
	}
	if p.SnowCover != nil {
		t.Errorf("absent snow cover decoded as %v, want nil", *p.SnowCover)
	}
	if p.GridCode == nil || *p.GridCode != "MGRS-32TQM" {
		t.Errorf("grid code = %v", p.GridCode)
	}

	asset, ok := f.Assets["TCI_10m"]
	if !ok {
		t.Fatal("TCI_10m asset missing")
	}
	if asset.FileSize == nil || *asset.FileSize != 125829120 {
		t.Errorf("file size = %v", asset.FileSize)
	}
}

func TestPolygonWKT(t *testing.T) {
	t.Parallel()

	var f Feature
	if err := json.Unmarshal([]byte(sampleFeature), &f); err != nil {
		t.Fatalf("decoding feature: %v", err)
	}

	wkt, err := polygonWKT(f.Geometry)
	if err != nil {
		t.Fatalf("polygonWKT() error = %v", err)
	}
	want := "POLYGON((11 42.3,12.1 42.3,12.1 43.2,11 43.2,11 42.3))"
	if wkt != want {
		t.Errorf("polygonWKT() = %q, want %q", wkt, want)
	}
}

func TestPolygonWKTRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		geom Geometry
	}{
		{"multipolygon", Geometry{Type: "MultiPolygon", Raw: json.RawMessage(`[[[[0,0],[1,0],[1,1],[0,0]]]]`)}},
		{"no rings", Geometry{Type: "Polygon", Raw: json.RawMessage(`[]`)}},
		{"open ring", Geometry{Type: "Polygon", Raw: json.RawMessage(`[[[0,0],[1,0],[1,1]]]`)}},
		{"malformed", Geometry{Type: "Polygon", Raw: json.RawMessage(`"nope"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := polygonWKT(tt.geom); err == nil {
				t.Error("polygonWKT() accepted")
			}
		})
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"features": [` + sampleFeature + `]}`)); err != nil {
			t.Errorf("writing response: %v", err)
		}
	}))
	defer srv.Close()

	l := New(nil, srv.URL, nil)
	features, err := l.Search(context.Background(), SearchParams{
		BBox:     BBox{11, 42, 13, 44},
		Datetime: "2024-06-01T00:00:00Z/2024-06-30T23:59:59Z",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(features) != 1 || features[0].ID == "" {
		t.Fatalf("features = %+v", features)
	}
	if gotReq.Collections[0] != DefaultCollection {
		t.Errorf("collection defaulted to %q", gotReq.Collections[0])
	}
	if gotReq.Limit != DefaultLimit {
		t.Errorf("limit defaulted to %d", gotReq.Limit)
	}
	if gotReq.BBox[2] != 13 {
		t.Errorf("bbox = %v", gotReq.BBox)
	}
}

func TestSearchHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	l := New(nil, srv.URL, nil)
	if _, err := l.Search(context.Background(), SearchParams{}); err == nil {
		t.Fatal("Search() returned nil error on 502")
	}
}

type fakeBatchResults struct {
	execs int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.execs++
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	batches []int
	results *fakeBatchResults
	rowFn   func(sql string, dest ...any) error
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return fakeRow{scan: func(dest ...any) error { return db.rowFn(sql, dest...) }}
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.batches = append(db.batches, b.Len())
	if db.results == nil {
		db.results = &fakeBatchResults{}
	}
	return db.results
}

func loadSample(t *testing.T) Feature {
	t.Helper()
	var f Feature
	if err := json.Unmarshal([]byte(sampleFeature), &f); err != nil {
		t.Fatalf("decoding feature: %v", err)
	}
	return f
}

func TestInsertScenes(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	l := New(db, "", nil)

	good := loadSample(t)
	broken := loadSample(t)
	broken.Geometry.Type = "Point"

	n, err := l.InsertScenes(context.Background(), []Feature{good, broken})
	if err != nil {
		t.Fatalf("InsertScenes() error = %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1 (unusable geometry skipped)", n)
	}
	if len(db.batches) != 1 || db.batches[0] != 1 {
		t.Errorf("batches = %v", db.batches)
	}
}

func TestInsertScenesEmpty(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	l := New(db, "", nil)
	n, err := l.InsertScenes(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("InsertScenes(nil) = %d, %v", n, err)
	}
	if len(db.batches) != 0 {
		t.Errorf("empty input sent a batch")
	}
}

func TestInsertAssets(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	l := New(db, "", nil)

	n, err := l.InsertAssets(context.Background(), []Feature{loadSample(t)})
	if err != nil {
		t.Fatalf("InsertAssets() error = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
}

func TestUpdateRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := time.Date(2025, 2, 20, 10, 30, 0, 0, time.UTC)

	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if _, err := w.Write([]byte(`{"features": []}`)); err != nil {
			t.Errorf("writing response: %v", err)
		}
	}))
	defer srv.Close()

	db := &fakeDB{rowFn: func(_ string, dest ...any) error {
		*(dest[0].(**time.Time)) = &last
		return nil
	}}
	l := New(db, srv.URL, nil, WithClock(func() time.Time { return now }))

	res, err := l.Update(context.Background(), BBox{11, 42, 13, 44}, "", 0)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if res.Fetched != 0 {
		t.Errorf("fetched = %d", res.Fetched)
	}

	want := "2025-02-20T10:30:01Z/2025-03-01T12:00:00Z"
	if gotReq.Datetime != want {
		t.Errorf("datetime range = %q, want %q", gotReq.Datetime, want)
	}
}

func TestUpdateEmptyTableBackfills(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if _, err := w.Write([]byte(`{"features": []}`)); err != nil {
			t.Errorf("writing response: %v", err)
		}
	}))
	defer srv.Close()

	db := &fakeDB{rowFn: func(_ string, dest ...any) error {
		*(dest[0].(**time.Time)) = nil
		return nil
	}}
	l := New(db, srv.URL, nil, WithClock(func() time.Time { return now }))

	if _, err := l.Update(context.Background(), BBox{11, 42, 13, 44}, "", 0); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	wantStart := now.AddDate(0, 0, -DefaultBackfillDays).Format(time.RFC3339)
	if gotReq.Datetime != wantStart+"/"+now.Format(time.RFC3339) {
		t.Errorf("datetime range = %q", gotReq.Datetime)
	}
}
