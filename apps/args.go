package apps

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// String returns args[key] when it is a non-empty string.
func (a Args) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok && s != ""
}

// Int returns args[key] as an int. Numbers decoded from JSON and numeric
// strings from the command line are accepted. A missing key reports false.
func (a Args) Int(key string) (int, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int32:
		return int(n), true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return int(i), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s must be an integer", key)
}
