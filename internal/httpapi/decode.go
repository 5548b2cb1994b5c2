package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// decodeJSONAllowEmpty is like decodeJSON but treats an empty body as an
// empty object.
func decodeJSONAllowEmpty(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// decodeBody decodes and validates a request body, writing the error
// response itself. It reports whether the handler may continue.
func (a *api) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	decode := decodeJSON
	if allowEmpty {
		decode = decodeJSONAllowEmpty
	}
	if err := decode(w, r, dst); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return false
	}
	if err := a.validate(dst); err != nil {
		WriteDomainError(w, err)
		return false
	}
	return true
}
