package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as an ErrorEnvelope. Errors without a pkgerrors code are
// reported as internal. The full chain, including driver and constraint fields, is
// logged but never sent to the caller.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	status, message, details := typed.Public()

	if logg != nil {
		logg.Error(logg.WithFields(ctx, errorLogFields(err, typed)), "request.error", err)
	}

	writeJSON(w, status, ErrorEnvelope{Error: APIError{
		Code:      string(typed.Code()),
		Message:   message,
		Details:   details,
		RequestID: w.Header().Get(RequestIDHeader),
	}})
}

func errorLogFields(err error, typed *pkgerrors.Error) map[string]any {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  typed.Code(),
		"error_chain": dump.Chain,
	}
	optional := map[string]string{
		"pg_code":       dump.PGCode,
		"pg_constraint": dump.PGConstraint,
		"pg_table":      dump.PGTable,
		"pg_column":     dump.PGColumn,
		"pg_detail":     dump.PGDetail,
		"pg_message":    dump.PGMessage,
		"rule":          dump.Rule,
	}
	for key, value := range optional {
		if value != "" {
			fields[key] = value
		}
	}
	if details, ok := typed.Details().(map[string]any); ok {
		if step, ok := details["step"]; ok {
			fields["step"] = step
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
