package api

import (
	"net/http"

	"go.uber.org/zap"
)

func (a *API) healthCheckHandler(rw http.ResponseWriter, _ *http.Request) {
	states, failed, err := a.deps.Health.State()
	if err != nil {
		a.log.Error("unable to fetch health state", zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "unable to fetch health state")

		return
	}

	status := http.StatusOK
	if failed {
		status = http.StatusServiceUnavailable
	}

	WriteJSON(rw, states, status)
}

func (a *API) versionHandler(rw http.ResponseWriter, _ *http.Request) {
	WriteJSON(rw, ResponseJSON{
		Status:  http.StatusOK,
		Message: "ok",
		Values: map[string]string{
			"version": a.version,
		},
	}, http.StatusOK)
}
