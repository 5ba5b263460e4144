// Package skywalking is the client for the SkyWalking GraphQL API: it builds query documents,
// maps responses into domain records and reduces trace call trees.
package skywalking

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Enum is implemented by values rendered as bare GraphQL enum literals.
type Enum interface {
	EnumValue() string
}

// Field is one key/value pair of an Object literal.
type Field struct {
	Key   string
	Value any
}

// Object is a GraphQL input object whose fields render in declaration order.
type Object []Field

var literalEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

// EncodeLiteral renders v as a GraphQL literal. Strings are escaped and quoted, booleans render as
// true/false, Object and maps render as {key: value} lists (maps with sorted keys), slices and arrays
// render as [a, b], Enum values render raw, and anything else renders with fmt.Sprint.
// All values interpolated into query documents must go through this function.
func EncodeLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return `"` + literalEscaper.Replace(val) + `"`
	case bool:
		if val {
			return "true"
		}
		return "false"
	case Enum:
		return val.EnumValue()
	case Object:
		parts := make([]string, 0, len(val))
		for _, f := range val {
			parts = append(parts, f.Key+": "+EncodeLiteral(f.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, EncodeLiteral(rv.Index(i).Interface()))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		values := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, k)
			values[k] = iter.Value().Interface()
		}
		sort.Strings(keys)
		obj := make(Object, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, Field{Key: k, Value: values[k]})
		}
		return EncodeLiteral(obj)
	case reflect.String:
		// named string types that are not enums are still strings
		return EncodeLiteral(rv.String())
	case reflect.Bool:
		return EncodeLiteral(rv.Bool())
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return EncodeLiteral(rv.Elem().Interface())
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
