package crm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/jsonutil"
	"github.com/ridewire/voice-engine/pkg/models"
)

// Wire types mirror the dispatch CRM payloads. They accept the loose typing
// the CRM is known for and are converted into models at this boundary, so
// nothing past this package ever sees an unvalidated record.

type wireAccount struct {
	ID   jsonutil.String `json:"id"`
	Name string          `json:"name"`
}

type wireLocation struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type wireAddress struct {
	ID         jsonutil.String `json:"id"`
	Formatted  string          `json:"formatted"`
	Address    string          `json:"address"` // older deployments
	Lat        *float64        `json:"lat"`
	Lng        *float64        `json:"lng"`
	UsageCount jsonutil.Int    `json:"usage_count"`
}

type wireTrip struct {
	ID          jsonutil.String `json:"id"`
	Status      string          `json:"status"`
	Pickup      wireLocation    `json:"pickup"`
	Destination wireLocation    `json:"destination"`
	PickupTime  string          `json:"pickup_time"`
	Driver      string          `json:"driver"`
}

type wireCustomer struct {
	ID        jsonutil.String `json:"id"`
	Phone     string          `json:"phone"`
	Name      string          `json:"name"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	VIP       jsonutil.Bool   `json:"vip"`
	Banned    jsonutil.Bool   `json:"banned"`
	Score     jsonutil.String `json:"score"`
	Account   *wireAccount    `json:"account"`
	Addresses []wireAddress   `json:"addresses"`
	Trips     []wireTrip      `json:"trips"`
}

type customersResponse struct {
	Customers []wireCustomer `json:"customers"`
}

type customerResponse struct {
	Customer wireCustomer `json:"customer"`
}

type addressesResponse struct {
	Addresses []wireAddress `json:"addresses"`
}

type tripsResponse struct {
	Trips []wireTrip `json:"trips"`
}

type createCustomerRequest struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

func (w wireAddress) toModel() (models.CrmAddress, error) {
	formatted := strings.TrimSpace(w.Formatted)
	if formatted == "" {
		formatted = strings.TrimSpace(w.Address)
	}
	a := models.CrmAddress{
		ID:         string(w.ID),
		Formatted:  formatted,
		Lat:        w.Lat,
		Lng:        w.Lng,
		UsageCount: int(w.UsageCount),
	}
	if a.Formatted == "" {
		return a, fmt.Errorf("%w: address %q has no text", apperrors.ErrInvalidUpstreamData, a.ID)
	}
	if a.UsageCount < 0 {
		return a, fmt.Errorf("%w: address %q has negative usage count", apperrors.ErrInvalidUpstreamData, a.ID)
	}
	return a, nil
}

func (w wireTrip) toModel() (models.CrmTrip, error) {
	t := models.CrmTrip{
		ID:          strings.TrimSpace(string(w.ID)),
		Status:      strings.TrimSpace(w.Status),
		Pickup:      models.Location{Address: strings.TrimSpace(w.Pickup.Address), Lat: w.Pickup.Lat, Lng: w.Pickup.Lng},
		Destination: models.Location{Address: strings.TrimSpace(w.Destination.Address), Lat: w.Destination.Lat, Lng: w.Destination.Lng},
		Driver:      strings.TrimSpace(w.Driver),
	}
	if t.ID == "" {
		return t, fmt.Errorf("%w: trip without id", apperrors.ErrInvalidUpstreamData)
	}
	if raw := strings.TrimSpace(w.PickupTime); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return t, fmt.Errorf("%w: trip %s pickup_time %q: %v", apperrors.ErrInvalidUpstreamData, t.ID, raw, err)
		}
		t.PickupTime = ts
	}
	return t, nil
}

func (w wireCustomer) toModel() (models.CrmCustomer, error) {
	c := models.CrmCustomer{
		ID:        strings.TrimSpace(string(w.ID)),
		Phone:     strings.TrimSpace(w.Phone),
		Name:      strings.TrimSpace(w.Name),
		FirstName: strings.TrimSpace(w.FirstName),
		LastName:  strings.TrimSpace(w.LastName),
		Email:     strings.TrimSpace(w.Email),
		VIP:       bool(w.VIP),
		Banned:    bool(w.Banned),
	}
	if s := strings.TrimSpace(string(w.Score)); s != "" {
		score, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c, fmt.Errorf("%w: customer score %q", apperrors.ErrInvalidUpstreamData, s)
		}
		c.Score = score
	}
	if w.Account != nil && (w.Account.ID != "" || w.Account.Name != "") {
		c.Account = &models.CrmAccount{ID: string(w.Account.ID), Name: strings.TrimSpace(w.Account.Name)}
	}

	var err error
	if c.Addresses, err = convertAddresses(w.Addresses); err != nil {
		return c, err
	}
	if c.Trips, err = convertTrips(w.Trips); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: %v", apperrors.ErrInvalidUpstreamData, err)
	}
	return c, nil
}

func convertAddresses(in []wireAddress) ([]models.CrmAddress, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]models.CrmAddress, 0, len(in))
	for _, w := range in {
		a, err := w.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func convertTrips(in []wireTrip) ([]models.CrmTrip, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]models.CrmTrip, 0, len(in))
	for _, w := range in {
		t, err := w.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
