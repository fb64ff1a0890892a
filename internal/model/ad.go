package model

import (
	"encoding/json"
	"fmt"
)

// AdSlotRecord is a server-defined ad creative bound to a named position
// such as "header", "sidebar" or "in_article_1".
type AdSlotRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
	Position string `json:"position"`
}

type ActiveAdsResponse struct {
	Items []AdSlotRecord `json:"items"`
}

func DecodeActiveAds(body []byte) ([]AdSlotRecord, error) {
	if isNull(body) {
		return []AdSlotRecord{}, nil
	}
	var resp ActiveAdsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return []AdSlotRecord{}, fmt.Errorf("decode active ads: %w", err)
	}
	if resp.Items == nil {
		return []AdSlotRecord{}, nil
	}
	return resp.Items, nil
}

// FindByPosition returns the first record bound to position.
func FindByPosition(records []AdSlotRecord, position string) *AdSlotRecord {
	for i := range records {
		if records[i].Position == position {
			rec := records[i]
			return &rec
		}
	}
	return nil
}
