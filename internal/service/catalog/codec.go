package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

type snapshotEnvelope struct {
	UpdatedAt time.Time         `json:"updatedAt"`
	Products  []catalog.Product `json:"products"`
}

func encodeSnapshot(products []catalog.Product, now time.Time) ([]byte, error) {
	if products == nil {
		products = []catalog.Product{}
	}
	data, err := json.Marshal(snapshotEnvelope{UpdatedAt: now.UTC(), Products: products})
	if err != nil {
		return nil, fmt.Errorf("encode catalog snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot accepts the envelope and, for hand-made snapshot files, a bare product array.
func decodeSnapshot(data []byte) ([]catalog.Product, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var products []catalog.Product
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return nil, fmt.Errorf("decode catalog snapshot: %w", err)
		}
		return products, nil
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	return envelope.Products, nil
}
