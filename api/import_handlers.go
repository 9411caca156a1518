package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/julienschmidt/httprouter"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	sb "github.com/dselans/blastbeat-albums/backends/state"
	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/services/album"
	"github.com/dselans/blastbeat-albums/services/state"
	"github.com/dselans/blastbeat-albums/util"
)

const (
	// Multipart parts beyond this are spooled to disk
	multipartMemory = 1 << 20

	latestImportID = "latest"
)

func (a *API) importHandler(rw http.ResponseWriter, r *http.Request) {
	logger := a.log.With(zap.String("method", "importHandler"))
	logger.Debug("handling import request", zap.String("remoteAddr", r.RemoteAddr))

	txn := newrelic.FromContext(r.Context())

	r.Body = http.MaxBytesReader(rw, r.Body, a.config.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(rw, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("bookmarks file exceeds the upload limit of %s",
					humanize.IBytes(uint64(a.config.MaxUploadBytes))))

			return
		}

		logger.Warn("unable to parse multipart form", zap.Error(err))
		writeError(rw, http.StatusBadRequest, "request must be a multipart form")

		return
	}

	defer r.MultipartForm.RemoveAll()

	folder := strings.TrimSpace(r.FormValue("folder"))
	if folder == "" {
		writeError(rw, http.StatusBadRequest, "folder cannot be empty")
		return
	}

	dryRun := false

	if v := r.FormValue("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(rw, http.StatusBadRequest, "dryRun must be a boolean")
			return
		}

		dryRun = parsed
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(rw, http.StatusBadRequest, "file cannot be empty")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		util.Error(txn, logger, "unable to read uploaded file", err)
		writeError(rw, http.StatusInternalServerError, "unable to read uploaded file")

		return
	}

	if len(data) == 0 {
		writeError(rw, http.StatusBadRequest, "file cannot be empty")
		return
	}

	logger = logger.With(zap.String("folder", folder), zap.Bool("dryRun", dryRun))
	txn.AddAttribute("folder", folder)

	res, err := a.deps.AlbumService.Import(util.WithLogger(r.Context(), logger), &album.ImportRequest{
		Folder: folder,
		Data:   data,
		DryRun: dryRun,
	})
	if err != nil {
		status, resp := importErrorResponse(err)

		if status == http.StatusInternalServerError {
			util.Error(txn, logger, "import failed", err)
		} else {
			logger.Debug("import rejected", zap.Error(err))
		}

		WriteJSON(rw, resp, status)

		return
	}

	WriteJSON(rw, res, http.StatusOK)
}

// importErrorResponse maps conversion and import errors to a status and body.
// Core errors keep their message since it names the offending folder or link.
func importErrorResponse(err error) (int, ResponseJSON) {
	var (
		hnf *bookmarks.HeadingNotFoundError
		ube *bookmarks.UnterminatedBlockError
		lve *bookmarks.LinkValidationError
	)

	switch {
	case errors.As(err, &hnf):
		return http.StatusNotFound, ResponseJSON{
			Status:  http.StatusNotFound,
			Message: hnf.Error(),
			Values:  map[string]string{"folder": hnf.HeadingText},
		}
	case errors.As(err, &ube):
		return http.StatusUnprocessableEntity, ResponseJSON{
			Status:  http.StatusUnprocessableEntity,
			Message: ube.Error(),
			Values:  map[string]string{"tag": ube.Tag},
		}
	case errors.As(err, &lve):
		return http.StatusUnprocessableEntity, ResponseJSON{
			Status:  http.StatusUnprocessableEntity,
			Message: lve.Error(),
			Values: map[string]string{
				"folder": lve.Link.Folder,
				"text":   lve.Link.Text,
				"href":   lve.Link.HrefOrEmpty(),
				"reason": lve.Reason,
			},
		}
	case errors.Is(err, state.ErrImportInProgress):
		return http.StatusConflict, ResponseJSON{
			Status:  http.StatusConflict,
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, ResponseJSON{
			Status:  http.StatusInternalServerError,
			Message: "unable to import bookmarks",
		}
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}

	// mime/multipart doesn't wrap read errors on every path
	return strings.Contains(err.Error(), "request body too large")
}

func (a *API) getImportHandler(rw http.ResponseWriter, r *http.Request) {
	logger := a.log.With(zap.String("method", "getImportHandler"))

	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	var (
		imp *state.Import
		err error
	)

	if id == latestImportID {
		imp, err = a.deps.AlbumService.LatestImport(r.Context())
	} else {
		imp, err = a.deps.AlbumService.GetImport(r.Context(), id)
	}

	if err != nil {
		if errors.Is(err, sb.ErrDoesNotExist) {
			writeError(rw, http.StatusNotFound, fmt.Sprintf("import '%s' not found", id))
			return
		}

		logger.Error("unable to fetch import", zap.String("id", id), zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "unable to fetch import")

		return
	}

	WriteJSON(rw, imp, http.StatusOK)
}
