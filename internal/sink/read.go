package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

type decoder interface {
	Decode(v any) error
}

// ReadRecords decodes a json, cbor or msgpack record stream written by a
// Sink and calls fn for each record. Integer values come back as int64 or
// uint64 (json.Number for JSON).
func ReadRecords(format string, r io.Reader, fn func(Record) error) error {
	var dec decoder
	switch format {
	case FormatJSON:
		jd := json.NewDecoder(r)
		jd.UseNumber()
		dec = jd
	case FormatCBOR:
		dec = cbor.NewDecoder(r)
	case FormatMsgpack:
		md := msgpack.NewDecoder(r)
		md.UseLooseInterfaceDecoding(true)
		dec = md
	default:
		return fmt.Errorf("%w %q for reading", ErrUnknownFormat, format)
	}

	for n := 0; ; n++ {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
