package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the paginated list envelope used by list endpoints.
type Page struct {
	Count    int             `json:"count"`
	Next     string          `json:"next"`
	Previous string          `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// DecodeList decodes either a bare JSON array or a Page envelope into out.
func DecodeList(data json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("api: decode list: %w", err)
		}
		return nil
	}
	var page Page
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return fmt.Errorf("api: decode page: %w", err)
	}
	if len(page.Results) == 0 {
		return nil
	}
	if err := json.Unmarshal(page.Results, out); err != nil {
		return fmt.Errorf("api: decode page results: %w", err)
	}
	return nil
}
