package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func FmtJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "marshal data fail"
	}
	return string(data)
}

const FloatMin = 0.000001

func IsFloatEqual(f1, f2 float64) bool {
	return math.Abs(f1-f2) < FloatMin
}

// ParseIntList parses a comma separated list of integers such as "2,7, 18". Empty items are skipped.
func ParseIntList(value string) ([]int, error) {
	var out []int
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, errors.Errorf("invalid integer %q", item)
		}
		out = append(out, v)
	}
	return out, nil
}
