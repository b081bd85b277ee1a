package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"carhack/internal/sink"
)

// PrintRecord prints a decoded signal record with the type of its value,
// for checking what a consumer of the binary stream will see.
func PrintRecord(w io.Writer, n int, rec sink.Record) {
	fmt.Fprintf(w, "[%d] %.6f %s\n", n, rec.Timestamp, rec.Name)
	printValue(w, rec.Value, 1)
}

func printValue(w io.Writer, item any, indent int) {
	prefix := strings.Repeat("  ", indent)

	switch v := item.(type) {
	case uint64:
		fmt.Fprintf(w, "%sUnsigned Int: %d (0x%X)\n", prefix, v, v)
	case int64:
		fmt.Fprintf(w, "%sSigned Int: %d\n", prefix, v)
	case float64:
		fmt.Fprintf(w, "%sFloat: %g\n", prefix, v)
	case json.Number:
		fmt.Fprintf(w, "%sNumber: %s\n", prefix, v)
	case bool:
		fmt.Fprintf(w, "%sBoolean: %v\n", prefix, v)
	case []byte:
		fmt.Fprintf(w, "%sByte String (%d bytes): %X\n", prefix, len(v), v)
	case []any:
		fmt.Fprintf(w, "%sArray (length %d)\n", prefix, len(v))
		for _, elem := range v {
			printValue(w, elem, indent+1)
		}
	case nil:
		fmt.Fprintf(w, "%sNull\n", prefix)
	default:
		fmt.Fprintf(w, "%s%T: %v\n", prefix, v, v)
	}
}
