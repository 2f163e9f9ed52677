// Package formdata reads the free-form application documents without a
// schema. Every accessor tolerates missing or mis-shaped data.
package formdata

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Field is one leaf value of a document, in document order.
type Field struct {
	Path  []string
	Value string
}

// Label renders the path as a readable heading, e.g. "Client Registration / Principal / Email".
func (f Field) Label() string {
	parts := make([]string, 0, len(f.Path))
	for _, p := range f.Path {
		parts = append(parts, Humanize(p))
	}
	return strings.Join(parts, " / ")
}

// Flatten walks the document depth-first and returns every scalar leaf.
// Empty objects and arrays produce no fields.
func Flatten(doc []byte) []Field {
	if !gjson.ValidBytes(doc) {
		return nil
	}
	var out []Field
	walk(gjson.ParseBytes(doc), nil, func(path []string, key string, v gjson.Result) {
		if v.IsObject() || v.IsArray() {
			return
		}
		p := make([]string, len(path))
		copy(p, path)
		out = append(out, Field{Path: p, Value: scalarString(v)})
	})
	return out
}

// Contact is the best-guess applicant identity of a document.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// ExtractContact searches the document for a name, email and phone number.
// The first match in document order wins for each; an email is a value
// under a key containing "email" or any value shaped like an address, a
// name is a value under a key containing "fullname" or named exactly
// "name", a phone is a value under a key containing "mobile" or "phone".
func ExtractContact(doc []byte) Contact {
	var c Contact
	if !gjson.ValidBytes(doc) {
		return c
	}
	walk(gjson.ParseBytes(doc), nil, func(_ []string, key string, v gjson.Result) {
		if v.IsObject() || v.IsArray() {
			return
		}
		val := strings.TrimSpace(scalarString(v))
		if val == "" {
			return
		}
		k := strings.ToLower(key)
		if c.Email == "" && v.Type == gjson.String {
			if strings.Contains(k, "email") || emailPattern.MatchString(val) {
				c.Email = val
			}
		}
		if c.Name == "" && (strings.Contains(k, "fullname") || k == "name") {
			c.Name = val
		}
		if c.Phone == "" && (strings.Contains(k, "mobile") || strings.Contains(k, "phone")) {
			c.Phone = val
		}
	})
	return c
}

// LookupEmail returns the first value at the given paths that looks like an
// email address.
func LookupEmail(doc []byte, paths []string) (string, bool) {
	if !gjson.ValidBytes(doc) {
		return "", false
	}
	for _, p := range paths {
		v := gjson.GetBytes(doc, p)
		if v.Type != gjson.String {
			continue
		}
		email := strings.TrimSpace(v.String())
		if emailPattern.MatchString(email) {
			return email, true
		}
	}
	return "", false
}

// IsEmail reports whether s is shaped like an email address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Humanize turns a camelCase or snake_case key into title-cased words.
func Humanize(key string) string {
	if _, err := strconv.Atoi(key); err == nil {
		return "#" + key
	}
	var b strings.Builder
	prevLower := false
	for _, r := range key {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func walk(v gjson.Result, path []string, visit func(path []string, key string, v gjson.Result)) {
	key := ""
	if len(path) > 0 {
		key = path[len(path)-1]
		visit(path, key, v)
	}
	switch {
	case v.IsObject():
		v.ForEach(func(k, child gjson.Result) bool {
			walk(child, append(path, k.String()), visit)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, child gjson.Result) bool {
			i++
			walk(child, append(path, strconv.Itoa(i)), visit)
			return true
		})
	}
}

func scalarString(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.True:
		return "Yes"
	case gjson.False:
		return "No"
	default:
		return v.String()
	}
}
