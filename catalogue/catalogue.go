// Package catalogue records stacked dataset headers in Postgres so the
// command line tools can look up scenes by path and acquisition time
// without reopening every file. Lookups go through memcache when one is
// configured.
package catalogue

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nci/gomemcache/memcache"

	"github.com/nci/eotools/raster"
)

const schema = `
create table if not exists datasets (
	id serial primary key,
	path text unique not null,
	samples integer not null,
	lines integer not null,
	bands integer not null,
	projection text,
	geotransform float8[],
	nodata float8,
	ingested timestamptz not null default now()
);
create table if not exists dataset_bands (
	dataset_id integer references datasets(id) on delete cascade,
	band_index integer not null,
	name text,
	datetime timestamptz,
	primary key (dataset_id, band_index)
);
create index if not exists dataset_bands_datetime on dataset_bands(datetime);
`

// EnsureSchema creates the catalogue tables when they do not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating catalogue schema: %v", err)
	}
	return nil
}

// Ingest records a dataset header. Re-ingesting the same path replaces
// the previous record and its band rows.
func Ingest(db *sql.DB, info *raster.Info) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("catalogue ingest: %v", err)
	}
	defer tx.Rollback()

	gtParts := make([]string, len(info.GeoTransform))
	for i, v := range info.GeoTransform {
		gtParts[i] = fmt.Sprintf("%v", v)
	}
	gt := "array[" + strings.Join(gtParts, ",") + "]::float8[]"

	var id int
	err = tx.QueryRow(
		`insert into datasets (path, samples, lines, bands, projection, geotransform, nodata)
		values ($1, $2, $3, $4, nullif($5,''), `+gt+`, $6)
		on conflict (path) do update set
			samples = excluded.samples,
			lines = excluded.lines,
			bands = excluded.bands,
			projection = excluded.projection,
			geotransform = excluded.geotransform,
			nodata = excluded.nodata,
			ingested = now()
		returning id`,
		info.Path, info.Samples, info.Lines, info.Bands, info.Projection, info.NoData,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("catalogue ingest of %v: %v", info.Path, err)
	}

	if _, err = tx.Exec(`delete from dataset_bands where dataset_id = $1`, id); err != nil {
		return fmt.Errorf("catalogue ingest of %v: %v", info.Path, err)
	}
	for _, b := range info.BandInfos {
		var dt interface{}
		if !b.Datetime.IsZero() {
			dt = b.Datetime
		}
		_, err = tx.Exec(
			`insert into dataset_bands (dataset_id, band_index, name, datetime)
			values ($1, $2, nullif($3,''), $4)`,
			id, b.Index, b.Name, dt,
		)
		if err != nil {
			return fmt.Errorf("catalogue ingest of %v band %d: %v", info.Path, b.Index, err)
		}
	}

	return tx.Commit()
}

type Client struct {
	DB *sql.DB
	MC *memcache.Client
}

// NewClient opens a catalogue connection. mcURI may be empty, in which
// case every lookup goes to the database.
func NewClient(dsn, mcURI string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue: %v", err)
	}
	client := &Client{DB: db}
	if mcURI != "" {
		// lazy connection; errors returned in .Get
		client.MC = memcache.New(mcURI)
	}
	return client, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// LookupBands returns the band records for path whose datetimes fall in
// [since, until]. Zero times leave the corresponding end unbounded.
// Results pass through memcache when a client is configured.
func (c *Client) LookupBands(path string, since, until time.Time) ([]raster.BandInfo, error) {
	var sinceArg, untilArg string
	if !since.IsZero() {
		sinceArg = since.Format(time.RFC3339)
	}
	if !until.IsZero() {
		untilArg = until.Format(time.RFC3339)
	}

	var hash string
	if c.MC != nil {
		buff := md5.Sum([]byte(fmt.Sprintf("bands:%s:%s:%s", path, sinceArg, untilArg)))
		hash = hex.EncodeToString(buff[:])

		if cached, ok := c.MC.Get(hash); ok == nil {
			var bands []raster.BandInfo
			if err := json.Unmarshal(cached.Value, &bands); err == nil {
				return bands, nil
			}
		}
	}

	rows, err := c.DB.Query(
		`select b.band_index, coalesce(b.name, ''), b.datetime
		from dataset_bands b
		join datasets d on d.id = b.dataset_id
		where d.path = $1
		and (nullif($2,'')::timestamptz is null or b.datetime >= nullif($2,'')::timestamptz)
		and (nullif($3,'')::timestamptz is null or b.datetime <= nullif($3,'')::timestamptz)
		order by b.band_index`,
		path, sinceArg, untilArg,
	)
	if err != nil {
		return nil, fmt.Errorf("catalogue lookup of %v: %v", path, err)
	}
	defer rows.Close()

	var bands []raster.BandInfo
	for rows.Next() {
		var b raster.BandInfo
		var dt sql.NullTime
		if err := rows.Scan(&b.Index, &b.Name, &dt); err != nil {
			return nil, fmt.Errorf("catalogue lookup of %v: %v", path, err)
		}
		if dt.Valid {
			b.Datetime = dt.Time
		}
		bands = append(bands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogue lookup of %v: %v", path, err)
	}

	if c.MC != nil {
		if payload, err := json.Marshal(bands); err == nil {
			// don't care about errors; memcache may not necessarily retain this anyway
			c.MC.Set(&memcache.Item{Key: hash, Value: payload})
		}
	}
	return bands, nil
}
