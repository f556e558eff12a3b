package storefront

import (
	"encoding/json"
	"fmt"

	"storefront/internal/model"
)

// addressBookKey is the persisted-state key for the guest address book.
const addressBookKey = "address_book"

// Addresses lists the saved delivery addresses.
func (s *Service) Addresses() ([]model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAddressesLocked()
}

// Address looks up a saved address by label.
func (s *Service) Address(label string) (model.Address, error) {
	addrs, err := s.Addresses()
	if err != nil {
		return model.Address{}, err
	}
	for _, a := range addrs {
		if a.Label == label {
			return a, nil
		}
	}
	return model.Address{}, model.NewNotFoundError(fmt.Sprintf("address %q", label))
}

// SaveAddress adds or replaces an address by label.
func (s *Service) SaveAddress(addr model.Address) error {
	if addr.Label == "" {
		return model.NewValidationError("label", "address label is required")
	}
	if addr.Address1 == "" || addr.City == "" || addr.Postcode == "" {
		return model.NewValidationError("address", "street, city, and postcode are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addrs, err := s.readAddressesLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i, a := range addrs {
		if a.Label == addr.Label {
			addrs[i] = addr
			replaced = true
			break
		}
	}
	if !replaced {
		addrs = append(addrs, addr)
	}
	return s.writeAddressesLocked(addrs)
}

// DeleteAddress removes a saved address by label.
func (s *Service) DeleteAddress(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs, err := s.readAddressesLocked()
	if err != nil {
		return err
	}

	for i, a := range addrs {
		if a.Label == label {
			addrs = append(addrs[:i], addrs[i+1:]...)
			return s.writeAddressesLocked(addrs)
		}
	}
	return model.NewNotFoundError(fmt.Sprintf("address %q", label))
}

func (s *Service) readAddressesLocked() ([]model.Address, error) {
	data, ok, err := s.kv.Get(addressBookKey)
	if err != nil {
		return nil, fmt.Errorf("loading address book: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var addrs []model.Address
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, fmt.Errorf("parsing address book: %w", err)
	}
	return addrs, nil
}

func (s *Service) writeAddressesLocked(addrs []model.Address) error {
	data, err := json.Marshal(addrs)
	if err != nil {
		return fmt.Errorf("encoding address book: %w", err)
	}
	if err := s.kv.Put(addressBookKey, data); err != nil {
		return fmt.Errorf("saving address book: %w", err)
	}
	return nil
}
