package browser

import "encoding/json"

// marshalStrings renders ss as a JSON array literal for interpolation into
// an injected script.
func marshalStrings(ss []string) (string, error) {
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
