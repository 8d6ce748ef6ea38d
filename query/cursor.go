package query

import (
	"bytes"
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Cursor is an opaque continuation token marking the last record returned.
// The zero value means "start from the beginning".
type Cursor string

// IsZero reports whether c is empty.
func (c Cursor) IsZero() bool { return c == "" }

// ErrInvalidCursor is returned when a cursor cannot be decoded.
var ErrInvalidCursor = errors.New("query: invalid cursor")

// Position is the decoded form of a cursor: the id of the last record and the
// value it held for every order-by field of the query that produced it.
type Position struct {
	ID     string `msgpack:"i"`
	Values []any  `msgpack:"v"`
}

// PositionOf captures the position of rec under orderBy.
func PositionOf(rec Record, orderBy []Sort) Position {
	values := make([]any, len(orderBy))
	for i, o := range orderBy {
		if o.Field == IDField {
			values[i] = rec.ID()
			continue
		}
		values[i] = rec[o.Field]
	}
	return Position{ID: rec.ID(), Values: values}
}

// CursorFor returns the cursor pointing just after rec.
func CursorFor(rec Record, orderBy []Sort) (Cursor, error) {
	return EncodeCursor(PositionOf(rec, orderBy))
}

// EncodeCursor serializes p with msgpack and base64url.
func EncodeCursor(p Position) (Cursor, error) {
	raw, err := msgpack.Marshal(&p)
	if err != nil {
		return "", errors.Wrap(err, "encode cursor")
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// DecodeCursor reverses EncodeCursor. Integers decode as int64, unsigned
// integers as uint64 and floats as float64.
func DecodeCursor(c Cursor) (Position, error) {
	var p Position
	if c.IsZero() {
		return p, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return p, errors.Wrap(ErrInvalidCursor, err.Error())
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&p); err != nil {
		return p, errors.Wrap(ErrInvalidCursor, err.Error())
	}
	return p, nil
}
