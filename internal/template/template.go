// Package template renders notification subjects and bodies. Two token
// syntaxes are honored in one pass over the same context: dotted-path tokens
// like {{user.name}} and legacy flat tokens like {token}. Tokens that do not
// resolve to a stringable value are left verbatim so broken data stays
// visible in the sent email instead of disappearing silently.
package template

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	dottedRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_-]+(?:\.[a-zA-Z0-9_-]+)*)\s*\}\}`)
	// flatRE also swallows surrounding double braces so an unresolved dotted
	// token is never half-replaced by the flat pass.
	flatRE    = regexp.MustCompile(`\{\{?([a-zA-Z0-9_-]+)\}\}?`)
	wrappedRE = regexp.MustCompile(`^\{([a-zA-Z0-9_-]+)\}$`)
)

// Engine resolves tokens against a caller-built context. No HTML escaping is
// performed; bodies are authored as HTML and markup passes through exactly.
// Escaping user input that feeds context values is the caller's job.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Render substitutes both token syntaxes against ctx. Dotted tokens walk the
// context segment by segment through maps, structs, and slices; flat tokens
// resolve only against normalized top-level keys. Unknown tokens and tokens
// resolving to structured values stay verbatim.
func (e *Engine) Render(text string, ctx map[string]any) string {
	if text == "" || len(ctx) == 0 {
		return text
	}

	out := dottedRE.ReplaceAllStringFunc(text, func(token string) string {
		path := dottedRE.FindStringSubmatch(token)[1]
		value, ok := walk(ctx, strings.Split(path, "."))
		if !ok {
			return token
		}
		rendered, ok := stringify(value)
		if !ok {
			return token
		}
		return rendered
	})

	flat := normalize(ctx)
	return flatRE.ReplaceAllStringFunc(out, func(token string) string {
		// Double-braced matches are unresolved dotted tokens; leave them.
		if strings.HasPrefix(token, "{{") || strings.HasSuffix(token, "}}") {
			return token
		}
		key := flatRE.FindStringSubmatch(token)[1]
		value, ok := flat[key]
		if !ok {
			return token
		}
		rendered, ok := stringify(value)
		if !ok {
			return token
		}
		return rendered
	})
}

// normalize exposes top-level context keys for the flat syntax. Keys authored
// in wrapped form, like "{token}", are exposed under the bare token name for
// backward compatibility with legacy templates.
func normalize(ctx map[string]any) map[string]any {
	flat := make(map[string]any, len(ctx))
	for key, value := range ctx {
		if m := wrappedRE.FindStringSubmatch(key); m != nil {
			flat[m[1]] = value
			continue
		}
		flat[key] = value
	}
	return flat
}

// walk resolves a dotted path against nested maps, structs, and slices.
// Returns false as soon as any segment is missing.
func walk(root any, segments []string) (any, bool) {
	current := root
	for _, segment := range segments {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(current any, segment string) (any, bool) {
	switch typed := current.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok
	case map[string]string:
		value, ok := typed[segment]
		return value, ok
	}

	v := reflect.ValueOf(current)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := v.MapIndex(reflect.ValueOf(segment))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Struct:
		field := v.FieldByName(segment)
		if !field.IsValid() {
			// Template authors write lower-case paths; struct fields are
			// exported. Fall back to a case-insensitive match.
			field = v.FieldByNameFunc(func(name string) bool {
				return strings.EqualFold(name, segment)
			})
		}
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= v.Len() {
			return nil, false
		}
		return v.Index(index).Interface(), true
	}
	return nil, false
}

// stringify converts scalars and explicit string conversions. Structured
// values report false so internal representations never leak into emails.
func stringify(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case fmt.Stringer:
		return typed.String(), true
	case bool:
		return strconv.FormatBool(typed), true
	case int:
		return strconv.Itoa(typed), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", typed), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", typed), true
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case error:
		return typed.Error(), true
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return "", false
	}
	return "", false
}
