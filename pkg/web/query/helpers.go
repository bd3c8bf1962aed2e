package query

import (
	"net/url"
	"strconv"
	"strings"
)

// list collects key[] and key values in order. With split, values are also
// split on commas and trimmed.
func list(values url.Values, key string, split bool) []string {
	raw := append(append([]string{}, values[key+"[]"]...), values[key]...)
	if len(raw) == 0 {
		return nil
	}

	var out []string
	for _, v := range raw {
		if !split {
			out = append(out, v)
			continue
		}
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// intValue parses key as an integer. ok is false when the key is absent or
// malformed; malformed values are recorded on verr.
func intValue(values url.Values, key string, verr *ValidationError) (int, bool) {
	if !values.Has(key) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		verr.Add(key, "must be an integer")
		return 0, false
	}
	return n, true
}
