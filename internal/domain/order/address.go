package order

import (
	"strings"

	"github.com/go-faster/jx"
)

// validShippingAddress reports whether raw is a non-empty JSON object, array
// or string. The payload is otherwise opaque and stored verbatim.
func validShippingAddress(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	d := jx.DecodeBytes(raw)
	n := 0
	var err error
	switch d.Next() {
	case jx.Object:
		err = d.ObjBytes(func(d *jx.Decoder, _ []byte) error {
			n++
			return d.Skip()
		})
	case jx.Array:
		err = d.Arr(func(d *jx.Decoder) error {
			n++
			return d.Skip()
		})
	case jx.String:
		var s string
		s, err = d.Str()
		if strings.TrimSpace(s) != "" {
			n++
		}
	default:
		return false
	}
	return err == nil && n > 0
}
