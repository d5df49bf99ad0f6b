package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iurnickita/shopdash/internal/analytics"
	"github.com/iurnickita/shopdash/internal/apiclient"
	"github.com/iurnickita/shopdash/internal/collection"
	"github.com/iurnickita/shopdash/internal/service"
)

var errInvalidBody = errors.New("invalid request body")

type dataResponse struct {
	Data any `json:"data"`
}

// Ответ списка: ошибка загрузки отличается от пустого списка полем error
type listResponse struct {
	Data   any                 `json:"data"`
	Loaded bool                `json:"loaded"`
	Error  *collection.Failure `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func invalidBody(err error) error {
	return fmt.Errorf("%w: %w", errInvalidBody, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func writeList[T collection.Entity](w http.ResponseWriter, view collection.View[T]) {
	items := view.Items
	if items == nil {
		items = []T{}
	}
	resp := listResponse{Data: items, Loaded: view.Loaded}

	status := http.StatusOK
	if view.Err != nil {
		failure := collection.FailureOf(view.Err)
		resp.Error = &failure
		if !view.Loaded {
			status, _ = classify(view.Err)
		}
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, zaplog *zap.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		zaplog.Error("request failed", zap.Int("code", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func classify(err error) (int, apiError) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: service.ErrValidation.Error(), Details: verr.Fields}
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, apiError{Code: "invalid_body", Message: err.Error()}
	case errors.Is(err, analytics.ErrInvalidArgument):
		return http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()}
	case errors.Is(err, service.ErrInsufficientData):
		return http.StatusBadRequest, apiError{Code: "insufficient_data", Message: err.Error()}
	}

	failure := collection.FailureOf(err)
	body := apiError{Code: string(failure.Kind), Message: failure.Message}
	if errs := multierr.Errors(err); len(errs) > 1 {
		failures := make([]collection.Failure, 0, len(errs))
		for _, e := range errs {
			failures = append(failures, collection.FailureOf(e))
		}
		body.Details = failures
	}

	switch failure.Kind {
	case collection.FailureAuthUnavailable:
		return http.StatusUnauthorized, body
	case collection.FailureRemote:
		// 4xx от API отдаём как есть, остальное считаем недоступностью API
		var remoteErr *apiclient.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode >= 400 && remoteErr.StatusCode < 500 {
			return remoteErr.StatusCode, body
		}
		return http.StatusBadGateway, body
	case collection.FailureSuperseded:
		return http.StatusConflict, body
	}
	return http.StatusInternalServerError, apiError{Code: string(collection.FailureInternal), Message: "internal server error"}
}
