package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	NetworkMessage = "Error de red. Verifique su conexión a internet."
	GenericMessage = "Ocurrió un error inesperado. Intente nuevamente."
)

var friendlyMessages = map[int]string{
	400: "Solicitud inválida. Verifique los datos enviados.",
	401: "Sesión expirada o no autorizada. Inicie sesión nuevamente.",
	403: "No tiene permisos para realizar esta acción.",
	404: "El recurso solicitado no fue encontrado.",
	408: "La solicitud tardó demasiado. Intente nuevamente.",
	429: "Demasiadas solicitudes. Espere un momento e intente nuevamente.",
	500: "Error interno del servidor. Intente más tarde.",
	502: "El servidor no está disponible en este momento (Bad Gateway).",
	503: "Servicio no disponible temporalmente. Intente más tarde.",
	504: "El servidor tardó demasiado en responder.",
}

// FriendlyMessage is the operator-facing text for an HTTP status.
func FriendlyMessage(status int) string {
	if msg, ok := friendlyMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Error %d", status)
}

// APIError is any failed platform call: a non-2xx response, a 2xx envelope
// flagged as failed, or a transport failure (Network set, Status zero).
type APIError struct {
	Status          int
	Method          string
	Path            string
	FriendlyMessage string
	Message         string
	Errors          map[string][]string
	Network         bool
	Err             error
}

func (e *APIError) Error() string {
	if e.Network {
		return fmt.Sprintf("platform %s %s: network: %v", e.Method, e.Path, e.Err)
	}
	detail := e.Message
	if flat := FlattenErrors(e.Errors); flat != "" {
		if detail != "" {
			detail += ": "
		}
		detail += flat
	}
	if detail == "" {
		detail = e.FriendlyMessage
	}
	return fmt.Sprintf("platform %s %s: status %d: %s", e.Method, e.Path, e.Status, detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NotFound reports whether err is a platform 404.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

// FlattenErrors joins a field -> messages map into one line. Fields are
// visited in sorted order so the output is stable.
func FlattenErrors(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, msg := range fields[k] {
			if msg = strings.TrimSpace(msg); msg != "" {
				parts = append(parts, msg)
			}
		}
	}
	return strings.Join(parts, "; ")
}

// UserMessage picks the text shown to the operator for err: the server's own
// message, then its field errors, then the status message, then a generic
// fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return GenericMessage
	}
	if apiErr.Network {
		return NetworkMessage
	}
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		return msg
	}
	if flat := FlattenErrors(apiErr.Errors); flat != "" {
		return flat
	}
	if apiErr.FriendlyMessage != "" {
		return apiErr.FriendlyMessage
	}
	return GenericMessage
}

// decodeFieldErrors accepts both {"field": ["a", "b"]} and {"field": "a"}.
func decodeFieldErrors(raw map[string]json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for field, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			out[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[field] = []string{single}
		}
	}
	return out
}
