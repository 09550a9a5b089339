package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldsType tags the variant carried by StructuredFields.
type FieldsType string

const (
	FieldsNone            FieldsType = ""
	FieldsBusinessHours   FieldsType = "business_hours"
	FieldsDelivery        FieldsType = "delivery"
	FieldsPromotion       FieldsType = "promotion"
	FieldsCustomerService FieldsType = "customer_service"
	FieldsScheduling      FieldsType = "scheduling"
	FieldsGeneric         FieldsType = "generic"
)

// StructuredFields is a tagged union over the known kind-specific field
// shapes, with an ordered key/value fallback for shapes the source system
// adds faster than we model them. Exactly one variant is set, matching Type.
type StructuredFields struct {
	Type FieldsType `json:"type"`

	BusinessHours   *BusinessHoursFields   `json:"business_hours,omitempty"`
	Delivery        *DeliveryFields        `json:"delivery,omitempty"`
	Promotion       *PromotionFields       `json:"promotion,omitempty"`
	CustomerService *CustomerServiceFields `json:"customer_service,omitempty"`
	Scheduling      *SchedulingFields      `json:"scheduling,omitempty"`
	Generic         []KeyValue             `json:"generic,omitempty"`
}

// KeyValue preserves the ordering of fallback fields. Map iteration order
// would make fingerprints unstable.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BusinessHoursFields describes opening hours.
type BusinessHoursFields struct {
	Days     string `json:"days"`
	Opens    string `json:"opens"`
	Closes   string `json:"closes"`
	Timezone string `json:"timezone,omitempty"`
}

// DeliveryFields describes delivery conditions.
type DeliveryFields struct {
	Areas        []string `json:"areas,omitempty"`
	FeePolicy    string   `json:"fee_policy,omitempty"`
	MinOrder     string   `json:"min_order,omitempty"`
	EstimatedETA string   `json:"estimated_eta,omitempty"`
}

// PromotionFields describes a promotion.
type PromotionFields struct {
	Discount   string   `json:"discount"`
	AppliesTo  string   `json:"applies_to,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

// CustomerServiceFields describes service channels and tone.
type CustomerServiceFields struct {
	Channels     []string `json:"channels,omitempty"`
	ResponseTime string   `json:"response_time,omitempty"`
	Tone         string   `json:"tone,omitempty"`
}

// SchedulingFields describes appointment booking behavior.
type SchedulingFields struct {
	SlotMinutes  int    `json:"slot_minutes,omitempty"`
	LeadTime     string `json:"lead_time,omitempty"`
	Cancellation string `json:"cancellation,omitempty"`
}

// render produces the natural-language fragment for the active variant.
// The fragment feeds the embedded text, so changing the wording here
// invalidates fingerprints and forces a full re-embed on the next sync.
func (f StructuredFields) render() string {
	switch f.Type {
	case FieldsBusinessHours:
		return f.BusinessHours.render()
	case FieldsDelivery:
		return f.Delivery.render()
	case FieldsPromotion:
		return f.Promotion.render()
	case FieldsCustomerService:
		return f.CustomerService.render()
	case FieldsScheduling:
		return f.Scheduling.render()
	case FieldsGeneric:
		return renderGeneric(f.Generic)
	default:
		return ""
	}
}

func (f *BusinessHoursFields) render() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open %s from %s to %s", f.Days, f.Opens, f.Closes)
	if f.Timezone != "" {
		fmt.Fprintf(&b, " (%s)", f.Timezone)
	}
	b.WriteString(".")
	return b.String()
}

func (f *DeliveryFields) render() string {
	if f == nil {
		return ""
	}
	var parts []string
	if len(f.Areas) > 0 {
		parts = append(parts, "Delivery available in "+strings.Join(f.Areas, ", "))
	}
	if f.FeePolicy != "" {
		parts = append(parts, "Fees: "+f.FeePolicy)
	}
	if f.MinOrder != "" {
		parts = append(parts, "Minimum order: "+f.MinOrder)
	}
	if f.EstimatedETA != "" {
		parts = append(parts, "Estimated delivery time: "+f.EstimatedETA)
	}
	return joinSentences(parts)
}

func (f *PromotionFields) render() string {
	if f == nil {
		return ""
	}
	var parts []string
	if f.Discount != "" {
		parts = append(parts, "Promotion: "+f.Discount)
	}
	if f.AppliesTo != "" {
		parts = append(parts, "Applies to "+f.AppliesTo)
	}
	if len(f.Conditions) > 0 {
		parts = append(parts, "Conditions: "+strings.Join(f.Conditions, "; "))
	}
	return joinSentences(parts)
}

func (f *CustomerServiceFields) render() string {
	if f == nil {
		return ""
	}
	var parts []string
	if len(f.Channels) > 0 {
		parts = append(parts, "Support channels: "+strings.Join(f.Channels, ", "))
	}
	if f.ResponseTime != "" {
		parts = append(parts, "Typical response time: "+f.ResponseTime)
	}
	if f.Tone != "" {
		parts = append(parts, "Service tone: "+f.Tone)
	}
	return joinSentences(parts)
}

func (f *SchedulingFields) render() string {
	if f == nil {
		return ""
	}
	var parts []string
	if f.SlotMinutes > 0 {
		parts = append(parts, fmt.Sprintf("Appointments are booked in %d minute slots", f.SlotMinutes))
	}
	if f.LeadTime != "" {
		parts = append(parts, "Booking lead time: "+f.LeadTime)
	}
	if f.Cancellation != "" {
		parts = append(parts, "Cancellation policy: "+f.Cancellation)
	}
	return joinSentences(parts)
}

func renderGeneric(kvs []KeyValue) string {
	if len(kvs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, kv.Key+": "+kv.Value)
	}
	return joinSentences(parts)
}

func joinSentences(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// Canonical returns a stable textual form of the fields for fingerprinting.
// JSON marshaling of the tagged union is deterministic because the fallback
// variant is an ordered slice, not a map.
func (f StructuredFields) Canonical() string {
	b, err := json.Marshal(f)
	if err != nil {
		// Marshal of these concrete types cannot fail; keep the
		// fingerprint stable anyway.
		return string(f.Type)
	}
	return string(b)
}
