package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"webhook-proxy-go/internal/model"
)

// Body shapes reported by Normalize.
const (
	ShapeObject = "object"
	ShapeData   = "data"
	ShapeRaw    = "raw"
)

// Normalize turns a downstream reply into a caller-facing Result.
//
// A JSON object is used as is, any other JSON value is wrapped as {"data": v},
// and text that is not a single JSON value is wrapped as {"raw": text}. A
// missing "status" key is filled in from the HTTP status: "success" for 2xx,
// "error" otherwise. The returned shape is one of ShapeObject, ShapeData, ShapeRaw.
func Normalize(resp *model.DownstreamResponse) (model.Result, string) {
	var result model.Result
	shape := ShapeObject

	v, err := decodeJSON(resp.Body)
	switch obj, isObject := v.(map[string]any); {
	case err != nil:
		result = model.Result{"raw": resp.Body}
		shape = ShapeRaw
	case isObject:
		result = model.Result(obj)
	default:
		result = model.Result{"data": v}
		shape = ShapeData
	}

	if _, ok := result["status"]; !ok {
		if isSuccess(resp.StatusCode) {
			result["status"] = model.StatusSuccess
		} else {
			result["status"] = model.StatusError
		}
	}

	return result, shape
}

// decodeJSON parses exactly one JSON value. Numbers keep their literal text so
// large integers survive the round trip.
func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
