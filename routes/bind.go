package routes

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"slices"

	"github.com/gin-gonic/gin"

	"xhunt-server/types"
)

var errInvalidBody = types.NewError(types.ErrBadRequest, "Invalid JSON body")

// bindJSON decodes the request body into dst field by field. A body that is not
// a JSON object is a BadRequest. Fields whose value has the wrong JSON type are
// left at their zero value and returned as violations so the caller can report
// them alongside the struct rules.
func bindJSON(c *gin.Context, dst interface{}) (*types.ValidationError, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(c.Request.Body).Decode(&fields); err != nil {
		return nil, errInvalidBody
	}

	decodeErrs := &types.ValidationError{}
	target := reflect.TypeOf(dst).Elem()
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		single, err := json.Marshal(map[string]json.RawMessage{key: fields[key]})
		if err != nil {
			return nil, errInvalidBody
		}
		scratch := reflect.New(target).Interface()

		var ute *json.UnmarshalTypeError
		if err := json.Unmarshal(single, scratch); errors.As(err, &ute) {
			decodeErrs.Add(key, wrongTypeMessage(ute.Type))
			delete(fields, key)
		}
	}

	clean, err := json.Marshal(fields)
	if err != nil {
		return nil, errInvalidBody
	}
	if err := json.Unmarshal(clean, dst); err != nil {
		return nil, errInvalidBody
	}
	return decodeErrs, nil
}

func wrongTypeMessage(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Map, reflect.Struct:
		return "must be an object"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "must be a number"
	default:
		return "has the wrong type"
	}
}
