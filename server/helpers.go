package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dekarrin/llmctl/server/serr"
	"github.com/go-chi/chi/v5"
)

// parseJSON decodes req's body into v, which must be a pointer. Grounded on
// the engine's API-layer helper of the same name and purpose.
func parseJSON(req *http.Request, v interface{}) error {
	contentType := req.Header.Get("Content-Type")
	if strings.ToLower(contentType) != "application/json" {
		return fmt.Errorf("request content-type is not application/json")
	}

	bodyData, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	defer func() {
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewBuffer(bodyData))
	}()

	if err := json.Unmarshal(bodyData, v); err != nil {
		return serr.New("malformed JSON in request", err, serr.ErrBodyUnmarshal)
	}
	return nil
}

// getURLParam reads the chi URL parameter key and parses it with parse.
func getURLParam[E any](r *http.Request, key string, parse func(string) (E, error)) (val E, err error) {
	valStr := chi.URLParam(r, key)
	if valStr == "" {
		return val, fmt.Errorf("parameter %q does not exist", key)
	}
	val, err = parse(valStr)
	if err != nil {
		return val, serr.New(fmt.Sprintf("parameter %q is malformed", key), err, serr.ErrBadArgument)
	}
	return val, nil
}
