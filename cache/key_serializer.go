package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer writes filter values in a tagged text form.
//
// Strings are quoted, so "1" and 1 never share a key. Numbers of any Go kind
// are written by value, so int64(3), 3 and 3.0 do, matching the way document
// stores compare them. Times are written in UTC.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins namespace and the serialized args with KeySeparator.
func (s defaultKeySerializer) SerializeKey(namespace string, args ...any) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, arg := range args {
		b.WriteString(KeySeparator)
		s.write(&b, arg)
	}
	return b.String()
}

func (s defaultKeySerializer) write(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
		return
	case string:
		b.WriteString(strconv.Quote(x))
		return
	case bool:
		b.WriteString(strconv.FormatBool(x))
		return
	case time.Time:
		b.WriteString("t:")
		b.WriteString(x.UTC().Format(time.RFC3339Nano))
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("n:")
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString("n:")
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString("n:")
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		s.write(b, rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("[]")
			return
		}
		s.writeList(b, rv)
	case reflect.Array:
		s.writeList(b, rv)
	case reflect.Map:
		s.writeMap(b, rv)
	case reflect.Struct:
		if tm, ok := v.(encoding.TextMarshaler); ok {
			if text, err := tm.MarshalText(); err == nil {
				b.WriteString("text:")
				b.WriteString(strconv.Quote(string(text)))
				return
			}
		}
		s.writeStruct(b, rv)
	case reflect.Func, reflect.Chan:
		fmt.Fprintf(b, "%s:%p", rv.Kind(), v)
	default:
		s.writeJSON(b, v)
	}
}

func (s defaultKeySerializer) writeList(b *strings.Builder, rv reflect.Value) {
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		s.write(b, rv.Index(i).Interface())
	}
	b.WriteByte(']')
}

// writeMap orders entries by their serialized key.
func (s defaultKeySerializer) writeMap(b *strings.Builder, rv reflect.Value) {
	type entry struct{ key, value string }
	entries := make([]entry, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		var k, val strings.Builder
		s.write(&k, iter.Key().Interface())
		s.write(&val, iter.Value().Interface())
		entries = append(entries, entry{k.String(), val.String()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	b.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.key)
		b.WriteByte('=')
		b.WriteString(e.value)
	}
	b.WriteByte('}')
}

// writeStruct skips unexported fields.
func (s defaultKeySerializer) writeStruct(b *strings.Builder, rv reflect.Value) {
	rt := rv.Type()
	b.WriteString(rt.Name())
	b.WriteByte('{')
	first := true
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(field.Name)
		b.WriteByte(':')
		s.write(b, rv.Field(i).Interface())
	}
	b.WriteByte('}')
}

func (s defaultKeySerializer) writeJSON(b *strings.Builder, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(b, "unserializable:%T", v)
		return
	}
	b.WriteString("json:")
	b.Write(data)
}
