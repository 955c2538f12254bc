package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (64KB).
	// Link bodies are a handful of short attributes.
	MaxRequestBodySize = 64 << 10
)

// DecodeObject decodes a JSON object with arbitrary keys from the request body.
// null, arrays and scalars are rejected.
func DecodeObject(r *http.Request) (map[string]any, error) {
	var v map[string]any
	if err := decode(r, &v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errors.New("request body must be a JSON object")
		}
		return nil, err
	}
	if v == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return v, nil
}

func decode(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr):
			if unmarshalErr.Field == "" {
				return err
			}
			return fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("malformed JSON: unexpected end of body")
		default:
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	if decoder.More() {
		return errors.New("request body contains multiple JSON objects")
	}
	return nil
}
