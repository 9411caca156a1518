package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Album struct {
	ID        uuid.UUID `json:"id"`
	VideoID   string    `json:"videoId"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Published int       `json:"published"`
	Category  string    `json:"category"`
	AddDate   time.Time `json:"addDate"`
	CreatedAt time.Time `json:"createdAt"`
}

type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ListAlbumsParams struct {
	Category   string
	Query      string
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

const (
	DefaultListLimit = 500
	MaxListLimit     = 5000
)

// SortColumns maps accepted sort keys to columns.
var SortColumns = map[string]string{
	"artist":    "artist",
	"title":     "title",
	"published": "published",
	"addDate":   "add_date",
	"category":  "category",
}

const albumColumns = "id, video_id, artist, title, published, category, add_date, created_at"

// ExistingVideoIDs returns the subset of ids already stored.
func (d *DB) ExistingVideoIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)

	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT video_id FROM albums WHERE video_id = ANY($1)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query existing video ids")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan video id")
		}

		existing[id] = true
	}

	return existing, rows.Err()
}

// InsertAlbums inserts all albums in a single transaction and returns how many
// rows were written. Rows whose video_id already exists are left untouched.
func (d *DB) InsertAlbums(ctx context.Context, albums []Album) (int, error) {
	if len(albums) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO albums ("+albumColumns+") "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) "+
			"ON CONFLICT (video_id) DO NOTHING")
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	inserted := 0

	for _, a := range albums {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		res, err := stmt.ExecContext(ctx, id, a.VideoID, a.Artist, a.Title,
			a.Published, a.Category, a.AddDate)
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "failed to insert album '%s'", a.VideoID)
		}

		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrap(err, "failed to read affected rows")
		}

		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit albums")
	}

	return inserted, nil
}

func (d *DB) ListAlbums(ctx context.Context, params ListAlbumsParams) ([]Album, error) {
	query, args := buildListAlbumsQuery(params)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list albums")
	}
	defer rows.Close()

	albums := make([]Album, 0)

	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.VideoID, &a.Artist, &a.Title,
			&a.Published, &a.Category, &a.AddDate, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan album")
		}

		albums = append(albums, a)
	}

	return albums, rows.Err()
}

func buildListAlbumsQuery(params ListAlbumsParams) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if params.Category != "" {
		args = append(args, params.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where = append(where, fmt.Sprintf("(artist ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}

	query := "SELECT " + albumColumns + " FROM albums"

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	column, ok := SortColumns[params.SortBy]
	if !ok {
		column = "add_date"
	}

	direction := "ASC"
	if params.Descending {
		direction = "DESC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query += fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", column, direction, limit, offset)

	return query, args
}

func (d *DB) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM albums GROUP BY category ORDER BY category")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	defer rows.Close()

	categories := make([]Category, 0)

	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan category")
		}

		categories = append(categories, c)
	}

	return categories, rows.Err()
}
