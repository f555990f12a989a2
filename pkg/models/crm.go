package models

import (
	"fmt"
	"strings"
	"time"
)

// CrmAccount is the billing entity a customer may be linked to.
type CrmAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CrmAddress is a saved address in the dispatch CRM.
type CrmAddress struct {
	ID         string   `json:"id"`
	Formatted  string   `json:"formatted"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	UsageCount int      `json:"usage_count"`
}

// CrmTrip is a booked ride known to the dispatch CRM.
type CrmTrip struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Pickup      Location  `json:"pickup"`
	Destination Location  `json:"destination"`
	PickupTime  time.Time `json:"pickup_time"`
	Driver      string    `json:"driver,omitempty"`
}

// activeTripStatuses are CRM trip statuses that mean the ride is still going to happen.
var activeTripStatuses = map[string]bool{
	"booked":     true,
	"confirmed":  true,
	"pending":    true,
	"assigned":   true,
	"dispatched": true,
	"accepted":   true,
	"en_route":   true,
	"arrived":    true,
	"active":     true,
	"picked_up":  true,
}

// HasActiveStatus reports whether the trip status is one of the live statuses.
func (t CrmTrip) HasActiveStatus() bool {
	s := strings.ToLower(strings.TrimSpace(t.Status))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return activeTripStatuses[s]
}

// CrmCustomer is the live customer record in the dispatch CRM.
type CrmCustomer struct {
	ID        string       `json:"id"`
	Phone     string       `json:"phone"`
	Name      string       `json:"name,omitempty"`
	FirstName string       `json:"first_name,omitempty"`
	LastName  string       `json:"last_name,omitempty"`
	Email     string       `json:"email,omitempty"`
	VIP       bool         `json:"vip"`
	Banned    bool         `json:"banned"`
	Score     float64      `json:"score"`
	Account   *CrmAccount  `json:"account,omitempty"`
	Addresses []CrmAddress `json:"addresses,omitempty"`
	Trips     []CrmTrip    `json:"trips,omitempty"`
}

// Validate checks the invariants every CRM customer must satisfy before it
// reaches business logic.
func (c CrmCustomer) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("customer id is required")
	}
	for i, a := range c.Addresses {
		if strings.TrimSpace(a.Formatted) == "" {
			return fmt.Errorf("address %d has no formatted text", i)
		}
		if a.UsageCount < 0 {
			return fmt.Errorf("address %d has negative usage count", i)
		}
	}
	return nil
}

// GreetingName returns the name the CRM would have us use: first name, else
// the first word of the full name.
func (c CrmCustomer) GreetingName() string {
	if first := strings.TrimSpace(c.FirstName); first != "" {
		return first
	}
	if fields := strings.Fields(c.Name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// PrimaryAddress returns the most used address with a usage count of at
// least one. Earlier entries win ties.
func PrimaryAddress(addresses []CrmAddress) (CrmAddress, bool) {
	var best CrmAddress
	found := false
	for _, a := range addresses {
		if a.UsageCount < 1 || strings.TrimSpace(a.Formatted) == "" {
			continue
		}
		if !found || a.UsageCount > best.UsageCount {
			best = a
			found = true
		}
	}
	return best, found
}
