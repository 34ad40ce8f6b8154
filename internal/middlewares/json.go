package middlewares

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

type parsedJSONDataFieldType string

const parsedJSONDataField parsedJSONDataFieldType = "parsedJSONDataField"

const maxJSONBodySize = 1 << 20

// ModelParameter ограничивает модели, которые можно разобрать из тела запроса.
type ModelParameter interface {
	interface{} | []interface{}
}

// JSONMiddleware разбирает JSON-тело запроса в Model и кладёт результат в контекст.
func JSONMiddleware[Model ModelParameter](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			http.Error(w, "Тип контента не является application/json", http.StatusUnsupportedMediaType)
			return
		}

		var parsedData Model

		body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodySize))
		if err != nil {
			http.Error(w, fmt.Sprintf("Ошибка чтения из тела запроса: %s", err.Error()), http.StatusBadRequest)
			return
		}

		if err := json.Unmarshal(body, &parsedData); err != nil {
			http.Error(w, fmt.Sprintf("Ошибка при разборе данных JSON: %s", err.Error()), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), parsedJSONDataField, parsedData)))
	})
}

// GetParsedJSONData достаёт разобранную модель. Если её нет, отвечает 500.
func GetParsedJSONData[Model ModelParameter](w http.ResponseWriter, r *http.Request) (Model, bool) {
	data, ok := r.Context().Value(parsedJSONDataField).(Model)
	if !ok {
		http.Error(w, "Не удалось извлечь данные из контекста", http.StatusInternalServerError)
	}

	return data, ok
}

// EncodeJSONResponse пишет data как JSON с кодом status.
func EncodeJSONResponse[Model any](w http.ResponseWriter, status int, data Model) {
	resp, err := json.Marshal(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка при кодировании JSON-ответа: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(resp)
}
