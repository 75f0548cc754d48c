// Package ingest loads Sentinel acquisition records from the Copernicus
// STAC catalogue into PostgreSQL. Scenes and their assets are inserted in
// batches with duplicate keys skipped, so re-running a load is harmless.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/galileo0/galileo/internal/log"
)

// DefaultBackfillDays bounds the first update run on an empty table.
const DefaultBackfillDays = 360

// DB is the subset of pgxpool.Pool the loader needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Loader fetches STAC features and writes them to the scene tables.
type Loader struct {
	db         DB
	api        string
	httpClient *http.Client
	logger     log.Logger
	now        func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.httpClient = c
		}
	}
}

// WithClock replaces the wall clock used by Update.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Loader posting searches to the given STAC endpoint.
func New(db DB, api string, logger log.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	l := &Loader{
		db:         db,
		api:        api,
		httpClient: &http.Client{Timeout: searchTimeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result summarizes one load run.
type Result struct {
	Fetched int
	Scenes  int64
	Assets  int64
}

// LoadRegion fetches features for the search parameters and inserts scenes
// and assets.
func (l *Loader) LoadRegion(ctx context.Context, params SearchParams) (Result, error) {
	features, err := l.Search(ctx, params)
	if err != nil {
		return Result{}, err
	}

	scenes, err := l.InsertScenes(ctx, features)
	if err != nil {
		return Result{}, err
	}
	assets, err := l.InsertAssets(ctx, features)
	if err != nil {
		return Result{}, err
	}

	l.logger.Info("ingestion completed",
		"fetched", len(features), "scenes", scenes, "assets", assets)
	return Result{Fetched: len(features), Scenes: scenes, Assets: assets}, nil
}

// Update fetches everything newer than the latest stored acquisition. An
// empty table falls back to the last DefaultBackfillDays days.
func (l *Loader) Update(ctx context.Context, bbox BBox, collection string, limit int) (Result, error) {
	var last *time.Time
	err := l.db.QueryRow(ctx,
		`SELECT max(datetime) FROM sentinel_scenes`).Scan(&last)
	if err != nil {
		return Result{}, fmt.Errorf("reading latest acquisition time: %w", err)
	}

	end := l.now().UTC()
	var start time.Time
	if last == nil {
		start = end.AddDate(0, 0, -DefaultBackfillDays)
	} else {
		// One second past the stored maximum keeps the newest stored
		// scene out of the response.
		start = last.Add(time.Second)
	}

	return l.LoadRegion(ctx, SearchParams{
		BBox:       bbox,
		Datetime:   start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339),
		Collection: collection,
		Limit:      limit,
	})
}

const insertSceneSQL = `
INSERT INTO sentinel_scenes (
    scene_id, datetime, start_datetime, end_datetime,
    platform, constellation, instruments,
    cloud_cover, snow_cover,
    sun_azimuth, sun_elevation, view_azimuth, incidence_angle,
    absolute_orbit, relative_orbit, orbit_state,
    product_type, processing_level, processing_version, timeliness,
    grid_code, footprint,
    bbox_minx, bbox_miny, bbox_maxx, bbox_maxy,
    gsd, created, updated
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
    $16, $17, $18, $19, $20, $21, ST_GeomFromText($22, 4326),
    $23, $24, $25, $26, $27, $28, $29
)
ON CONFLICT (scene_id) DO NOTHING`

// InsertScenes batch-inserts scene rows, skipping duplicates. Features with
// an unusable geometry or bounding box are skipped with a warning.
func (l *Loader) InsertScenes(ctx context.Context, features []Feature) (int64, error) {
	if len(features) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, f := range features {
		wkt, err := polygonWKT(f.Geometry)
		if err != nil {
			l.logger.Warn("skipping scene with unusable geometry", "scene", f.ID, "error", err)
			continue
		}
		if len(f.BBox) < 4 {
			l.logger.Warn("skipping scene with short bbox", "scene", f.ID, "bbox_len", len(f.BBox))
			continue
		}

		p := f.Properties
		batch.Queue(insertSceneSQL,
			f.ID, p.Datetime, p.StartDatetime, p.EndDatetime,
			p.Platform, p.Constellation, p.Instruments,
			p.CloudCover, p.SnowCover,
			p.SunAzimuth, p.SunElevation, p.ViewAzimuth, p.IncidenceAngle,
			p.AbsoluteOrbit, p.RelativeOrbit, p.OrbitState,
			p.ProductType, p.ProcessingLevel, p.ProcessingVersion, p.Timeliness,
			p.GridCode, wkt,
			f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3],
			p.GSD, p.Created, p.Updated)
	}

	inserted, err := l.runBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("inserting scenes: %w", err)
	}
	l.logger.Info("scenes inserted",
		"inserted", inserted, "duplicates", int64(batch.Len())-inserted)
	return inserted, nil
}

const insertAssetSQL = `
INSERT INTO scene_assets (
    scene_id, asset_key, asset_type, href, roles,
    gsd, file_size, title, description
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (scene_id, asset_key) DO NOTHING`

// InsertAssets batch-inserts each feature's assets, skipping duplicates.
func (l *Loader) InsertAssets(ctx context.Context, features []Feature) (int64, error) {
	batch := &pgx.Batch{}
	for _, f := range features {
		for key, a := range f.Assets {
			batch.Queue(insertAssetSQL,
				f.ID, key, a.Type, a.Href, a.Roles,
				a.GSD, a.FileSize, a.Title, a.Description)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	inserted, err := l.runBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("inserting assets: %w", err)
	}
	l.logger.Info("assets inserted", "inserted", inserted)
	return inserted, nil
}

func (l *Loader) runBatch(ctx context.Context, batch *pgx.Batch) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	results := l.db.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return 0, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Stats summarizes the stored scene corpus.
type Stats struct {
	TotalScenes   int64
	TotalAssets   int64
	Earliest      *time.Time
	Latest        *time.Time
	AvgCloudCover *float64
	UniqueTiles   int64
	Platforms     int64
}

// Stats reads aggregate counts over the scene tables.
func (l *Loader) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := l.db.QueryRow(ctx, `
SELECT
    COUNT(*),
    MIN(datetime),
    MAX(datetime),
    AVG(cloud_cover),
    COUNT(DISTINCT grid_code),
    COUNT(DISTINCT platform)
FROM sentinel_scenes`).Scan(
		&s.TotalScenes, &s.Earliest, &s.Latest,
		&s.AvgCloudCover, &s.UniqueTiles, &s.Platforms)
	if err != nil {
		return Stats{}, fmt.Errorf("reading scene statistics: %w", err)
	}

	if err := l.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM scene_assets`).Scan(&s.TotalAssets); err != nil {
		return Stats{}, fmt.Errorf("reading asset statistics: %w", err)
	}
	return s, nil
}
