package models

// Field sources recorded on a CustomerProfile so callers can tell why a
// greeting used a given value.
const (
	SourceMemory  = "memory"
	SourceCRM     = "crm"
	SourceCaller  = "caller"
	SourceDefault = "default"
)

// CustomerProfile is the merged view of one caller.
//
// IsNewCustomer means neither source matched the phone. When the CRM was
// unreachable it is still true; read it together with CrmSection.Degraded.
type CustomerProfile struct {
	Phone         string `json:"phone"`
	IsNewCustomer bool   `json:"is_new_customer"`

	PreferredName       string `json:"preferred_name,omitempty"`
	PreferredNameSource string `json:"preferred_name_source,omitempty"`

	PreferredLanguage       string `json:"preferred_language"`
	PreferredLanguageSource string `json:"preferred_language_source"`

	PreferredPickupAddress       string `json:"preferred_pickup_address,omitempty"`
	PreferredPickupAddressSource string `json:"preferred_pickup_address_source,omitempty"`

	CrmCustomerID string `json:"crm_customer_id,omitempty"`
	VIP           bool   `json:"vip"`
	Banned        bool   `json:"banned,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	CreatedInCRM  bool   `json:"created_in_crm,omitempty"`
}
