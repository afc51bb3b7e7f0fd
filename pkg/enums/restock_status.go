package enums

import (
	"fmt"
	"strings"
)

// RestockStatus is derived from a restock request's timestamps; it is never persisted.
type RestockStatus string

const (
	RestockStatusPending   RestockStatus = "pending"
	RestockStatusFulfilled RestockStatus = "fulfilled"
	RestockStatusCancelled RestockStatus = "cancelled"
	RestockStatusExpired   RestockStatus = "expired"
)

// RestockStatusFilter adds "all" on top of the concrete statuses for list queries.
type RestockStatusFilter string

const (
	RestockFilterPending   RestockStatusFilter = "pending"
	RestockFilterFulfilled RestockStatusFilter = "fulfilled"
	RestockFilterCancelled RestockStatusFilter = "cancelled"
	RestockFilterExpired   RestockStatusFilter = "expired"
	RestockFilterAll       RestockStatusFilter = "all"
)

var validRestockStatusFilters = []RestockStatusFilter{
	RestockFilterPending,
	RestockFilterFulfilled,
	RestockFilterCancelled,
	RestockFilterExpired,
	RestockFilterAll,
}

// String implements fmt.Stringer.
func (s RestockStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s RestockStatus) IsTerminal() bool {
	return s == RestockStatusFulfilled || s == RestockStatusCancelled
}

// IsValid reports whether the value is a known filter.
func (f RestockStatusFilter) IsValid() bool {
	for _, candidate := range validRestockStatusFilters {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseRestockStatusFilter converts raw input into a filter; empty input means pending.
func ParseRestockStatusFilter(value string) (RestockStatusFilter, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return RestockFilterPending, nil
	}
	for _, candidate := range validRestockStatusFilters {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid restock status %q", value)
}
