package analysis

import (
	"encoding/json"

	"sentinel/pkg/errors"
)

// extractJSONBlock locates the first balanced JSON object in a model response
// and returns its raw bytes. Model output often wraps the object in prose or
// markdown fences, so scanning for the first balanced block is more reliable
// than unmarshalling the whole response.
func extractJSONBlock(response string) ([]byte, error) {
	start := -1
	braceCount := 0
	inString := false
	escaped := false

	for i, ch := range response {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if inString {
				continue
			}
			if start == -1 {
				start = i
			}
			braceCount++
		case '}':
			if inString {
				continue
			}
			braceCount--
			if braceCount == 0 && start != -1 {
				candidate := response[start : i+1]
				if json.Valid([]byte(candidate)) {
					return []byte(candidate), nil
				}
				// Malformed block; keep scanning for a later one
				start = -1
			}
		}
	}

	return nil, errors.Wrap(errors.ErrMalformedResponse, "no JSON object found in response")
}

// decodeResponse extracts the JSON block from a model response and decodes it
// into the stage's expected payload shape
func decodeResponse(response string, out interface{}) error {
	block, err := extractJSONBlock(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(block, out); err != nil {
		return errors.Wrap(errors.ErrMalformedResponse, err.Error())
	}
	return nil
}
