// Package jsonpath extracts values from JSON documents using a small subset
// of JSONPath ($.a.b[0]) or gjson's native dotted syntax.
package jsonpath

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound is returned when the path does not match anything.
	ErrNotFound = errors.New("path not found")
	// ErrInvalidJSON is returned when the document does not parse.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// Lookup resolves path in doc and returns the raw gjson result.
func Lookup(doc []byte, path string) (gjson.Result, error) {
	if len(doc) == 0 {
		return gjson.Result{}, fmt.Errorf("%w: empty document", ErrInvalidJSON)
	}
	if path == "" {
		return gjson.Result{}, errors.New("empty JSONPath expression")
	}
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, ErrInvalidJSON
	}

	result := gjson.GetBytes(doc, ToGjsonPath(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return result, nil
}

// Extract resolves path in doc and returns the decoded value: string,
// float64, bool, nil, []interface{} or map[string]interface{}.
func Extract(doc []byte, path string) (interface{}, error) {
	result, err := Lookup(doc, path)
	if err != nil {
		return nil, err
	}
	return result.Value(), nil
}

// ExtractString resolves path in doc and returns its string form. JSON null
// is reported as "null".
func ExtractString(doc []byte, path string) (string, error) {
	result, err := Lookup(doc, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

var bracketIndex = regexp.MustCompile(`\[(\d+|\*)\]`)
var bracketKey = regexp.MustCompile(`\[['"]([^'"]+)['"]\]`)

// ToGjsonPath converts a JSONPath expression to gjson syntax:
//
//	$.users[0].name   -> users.0.name
//	$['user']['name'] -> user.name
//	$                 -> @this
//
// Paths without a leading $ are assumed to already be in gjson syntax.
func ToGjsonPath(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	path = bracketKey.ReplaceAllString(path, ".$1")
	path = bracketIndex.ReplaceAllStringFunc(path, func(m string) string {
		idx := m[1 : len(m)-1]
		if idx == "*" {
			return ".#"
		}
		return "." + idx
	})

	return strings.TrimPrefix(path, ".")
}
