package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseBillJSON parses the JSON answer of a vision model
func parseBillJSON(text string) (*BillData, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrModelResponseMalformed)
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: invalid JSON object in response", ErrModelResponseMalformed)
	}

	text = text[startIdx : endIdx+1]

	var data BillData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrModelResponseMalformed, err)
	}

	// A missing or null total makes the whole answer unusable.
	if !data.TotalAmount.Valid {
		return nil, fmt.Errorf("%w: total_amount missing", ErrModelResponseMalformed)
	}

	data.Description = strings.TrimSpace(data.Description)

	return &data, nil
}
