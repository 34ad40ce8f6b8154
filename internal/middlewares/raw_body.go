package middlewares

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

type rawBodyFieldType string

const rawBodyField rawBodyFieldType = "rawBodyField"

// RawBodyMiddleware reads the whole body up to limit bytes and keeps the exact bytes
// in the request context, so handlers can verify signatures over them.
func RawBodyMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				http.Error(w, fmt.Sprintf("Error occurred during reading from the body: %s", err.Error()), http.StatusRequestEntityTooLarge)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), rawBodyField, body)))
		})
	}
}

func GetRawBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, ok := r.Context().Value(rawBodyField).([]byte)
	if !ok {
		http.Error(w, "Could not retrieve body from context", http.StatusInternalServerError)
	}

	return data, ok
}
