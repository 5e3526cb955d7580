// Package nrf provides the client interface and wire types for the
// Network Repository Function (3GPP Nnrf services).
package nrf

import (
	"fmt"
	"time"
)

// Profile is an NF profile as exchanged with the NRF.
// JSON field names follow the 3GPP SBI camelCase convention.
type Profile struct {
	NFInstanceID  string   `json:"nfInstanceId"`
	NFType        string   `json:"nfType"`
	NFStatus      string   `json:"nfStatus"`
	IPv4Addresses []string `json:"ipv4Addresses"`
	FQDN          string   `json:"fqdn,omitempty"`
	Capacity      *uint32  `json:"capacity,omitempty"`
	Priority      *uint32  `json:"priority,omitempty"`
}

// DefaultCapacity is assumed when a profile does not advertise one.
const DefaultCapacity uint32 = 100

// EffectiveCapacity returns the advertised capacity, or DefaultCapacity
// when the profile omits it.
func (p *Profile) EffectiveCapacity() uint32 {
	if p.Capacity == nil {
		return DefaultCapacity
	}
	return *p.Capacity
}

// Host returns the address upstream requests should target: the FQDN if
// present, otherwise the first IPv4 address. A profile with neither is
// not routable.
func (p *Profile) Host() (string, error) {
	if p.FQDN != "" {
		return p.FQDN, nil
	}
	if len(p.IPv4Addresses) > 0 {
		return p.IPv4Addresses[0], nil
	}
	return "", fmt.Errorf("profile %s has neither FQDN nor IPv4 address", p.NFInstanceID)
}

// Clone returns a deep copy of the profile so request-path code never
// shares slices with the cache.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.IPv4Addresses = append([]string(nil), p.IPv4Addresses...)
	if p.Capacity != nil {
		c := *p.Capacity
		clone.Capacity = &c
	}
	if p.Priority != nil {
		pr := *p.Priority
		clone.Priority = &pr
	}
	return &clone
}

// SearchResult is the body of a successful Nnrf_NFDiscovery response.
type SearchResult struct {
	NFInstances []Profile `json:"nfInstances"`
}

// CachedProfile pairs a profile with the instant it entered the cache.
type CachedProfile struct {
	Profile  Profile
	CachedAt time.Time
}

// NotificationEventType enumerates the NF status events the NRF pushes.
type NotificationEventType string

const (
	EventNFRegistered     NotificationEventType = "NF_REGISTERED"
	EventNFDeregistered   NotificationEventType = "NF_DEREGISTERED"
	EventNFProfileChanged NotificationEventType = "NF_PROFILE_CHANGED"
	EventNFStatusChanged  NotificationEventType = "NF_STATUS_CHANGED"
)

// Valid reports whether the event type is one the sink understands.
func (e NotificationEventType) Valid() bool {
	switch e {
	case EventNFRegistered, EventNFDeregistered, EventNFProfileChanged, EventNFStatusChanged:
		return true
	}
	return false
}

// Notification is an NF status change pushed by the NRF to subscribers.
type Notification struct {
	Event         NotificationEventType `json:"event"`
	NFInstanceURI string                `json:"nfInstanceUri"`
	NFProfile     *Profile              `json:"nfProfile,omitempty"`
}
