package httptyped

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/ylog"
)

var queryDecoder = func() *schema.Decoder {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	return dec
}()

// DecodeQuery fills out from the url query using `schema` tags.
func DecodeQuery(r *http.Request, out interface{}) error {
	if err := queryDecoder.Decode(out, r.URL.Query()); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	return nil
}

// DecodeBody reads a JSON body into out and closes the body.
func DecodeBody(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is nil")
	}

	defer func() {
		if _err := r.Body.Close(); _err != nil {
			ylog.Error(r.Context(), "cannot close request body", ylog.KV("error", _err))
		}
	}()

	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

// URLParam returns the trimmed path parameter, rejecting empty or non utf-8 values.
func URLParam(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, key))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}

	if !utf8.ValidString(v) {
		return "", fmt.Errorf("%s '%s' is not valid utf8", key, v)
	}

	return v, nil
}
