package upstream

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Amount extraction errors. Amounts on the wire are integers in the
// smallest currency unit; anything else fails extraction.
var (
	ErrAmountNotFound   = errors.New("amount not found in response body")
	ErrAmountNotInteger = errors.New("amount is not an integer")
	ErrAmountNegative   = errors.New("amount is negative")
)

// ExtractAmount locates an integer minor-unit amount in a JSON body
// using a gjson path. Zero is a valid amount.
func ExtractAmount(body []byte, path string) (int64, error) {
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return 0, fmt.Errorf("path %q: %w", path, ErrAmountNotFound)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("path %q holds %s: %w", path, res.Type, ErrAmountNotInteger)
	}
	if res.Num != math.Trunc(res.Num) {
		return 0, fmt.Errorf("path %q holds %v: %w", path, res.Num, ErrAmountNotInteger)
	}
	if res.Num < 0 {
		return 0, fmt.Errorf("path %q holds %v: %w", path, res.Num, ErrAmountNegative)
	}
	return res.Int(), nil
}

// ExtractString returns the string at a gjson path, or "" when the path
// is empty or does not resolve. Used for optional transaction id and
// currency paths.
func ExtractString(body []byte, path string) string {
	if path == "" {
		return ""
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return ""
	}
	return res.String()
}
