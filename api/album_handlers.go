package api

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/backends/db"
	"github.com/dselans/blastbeat-albums/services/album"
)

func (a *API) albumsHandler(rw http.ResponseWriter, r *http.Request) {
	logger := a.log.With(zap.String("method", "albumsHandler"))

	query := r.URL.Query()

	params := db.ListAlbumsParams{
		Category: query.Get("category"),
		Query:    query.Get("q"),
		SortBy:   query.Get("sort"),
	}

	switch query.Get("order") {
	case "", "asc":
	case "desc":
		params.Descending = true
	default:
		writeError(rw, http.StatusBadRequest, "order must be 'asc' or 'desc'")
		return
	}

	var err error

	if params.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(rw, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	if params.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(rw, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	albums, err := a.deps.AlbumService.ListAlbums(r.Context(), params)
	if err != nil {
		if errors.Is(err, album.ErrInvalidSort) {
			writeError(rw, http.StatusBadRequest, "sort must be one of artist, title, published, addDate, category")
			return
		}

		logger.Error("unable to list albums", zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "unable to list albums")

		return
	}

	WriteJSON(rw, albums, http.StatusOK)
}

func (a *API) categoriesHandler(rw http.ResponseWriter, r *http.Request) {
	logger := a.log.With(zap.String("method", "categoriesHandler"))

	categories, err := a.deps.AlbumService.ListCategories(r.Context())
	if err != nil {
		logger.Error("unable to list categories", zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "unable to list categories")

		return
	}

	WriteJSON(rw, categories, http.StatusOK)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, errors.New("must not be negative")
	}

	return n, nil
}
