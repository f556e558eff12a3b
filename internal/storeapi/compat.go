package storeapi

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinStoreAPIVersion is the oldest Store API schema this client
// understands. Businesses advertise their schema version in the
// directory; older backends lack the batch and select-shipping-rate
// endpoints the basket sync depends on.
const MinStoreAPIVersion = "v1.0.0"

// CheckVersion validates a business's advertised Store API version
// against the minimum this client supports. Accepts versions with or
// without the leading "v"; an empty version is rejected rather than
// assumed compatible.
func CheckVersion(version string) error {
	if version == "" {
		return fmt.Errorf("store API version not advertised (need %s or newer)", MinStoreAPIVersion)
	}

	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid store API version %q", version)
	}
	if semver.Compare(v, MinStoreAPIVersion) < 0 {
		return fmt.Errorf("store API version %s too old, need %s or newer", version, MinStoreAPIVersion)
	}
	return nil
}
