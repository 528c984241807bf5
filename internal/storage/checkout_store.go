package storage

import (
	"encoding/json"

	"storefront/internal/models"
)

const keyCheckoutSelection = "checkout_selection"

// CheckoutStore persists the in-progress checkout selection. TTL is enforced
// by the checkout orchestrator on read; the store only keeps the record.
type CheckoutStore struct {
	kv KV
}

func NewCheckoutStore(kv KV) *CheckoutStore {
	if kv == nil {
		kv = NopKV{}
	}
	return &CheckoutStore{kv: kv}
}

// Load returns the stored selection. An unreadable record is removed and
// reported as absent.
func (s *CheckoutStore) Load() (models.CheckoutSelection, bool) {
	raw, ok := s.kv.Get(keyCheckoutSelection)
	if !ok || raw == "" {
		return models.CheckoutSelection{}, false
	}
	var sel models.CheckoutSelection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil || !sel.DeliveryType.Valid() {
		s.kv.Remove(keyCheckoutSelection)
		return models.CheckoutSelection{}, false
	}
	return sel, true
}

func (s *CheckoutStore) Save(sel models.CheckoutSelection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	s.kv.Set(keyCheckoutSelection, string(data))
	return nil
}

func (s *CheckoutStore) Clear() {
	s.kv.Remove(keyCheckoutSelection)
}
