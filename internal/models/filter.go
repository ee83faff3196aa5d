package models

import "strings"

const (
	// FilterEmpty matches records whose field is null or "".
	FilterEmpty = "Empty"
	// FilterAll is sent by the dashboard for "no filter".
	FilterAll = "All"
)

// FilterParam maps a query parameter onto a record field.
type FilterParam struct {
	Param string
	Field string
}

// FeedbackIDParam is matched as a substring of the record id.
const FeedbackIDParam = "feedbackId"

// FilterParams lists the exact-match filters accepted by the list endpoint.
var FilterParams = []FilterParam{
	{Param: "salesperson", Field: "salesperson_name"},
	{Param: "itemType", Field: "item_type"},
	{Param: "metalType", Field: "metal_type"},
	{Param: "customerIntent", Field: "customer_intent"},
	{Param: "designPreference", Field: "design_preference"},
	{Param: "customerMood", Field: "customer_mood"},
	{Param: "storeImpression", Field: "store_impression"},
	{Param: "customerSupport", Field: "customer_support"},
	{Param: "priceIssue", Field: "reason_price"},
	{Param: "sizeIssue", Field: "reason_size"},
}

// ListFilter is a parsed list query. Fields maps record field to the wanted
// value, FilterEmpty included.
type ListFilter struct {
	FeedbackID string
	Fields     map[string]string
}

// IsZero reports a filter that matches everything.
func (f ListFilter) IsZero() bool {
	return f.FeedbackID == "" && len(f.Fields) == 0
}

// ParseListFilter builds a filter from a query getter. Blank and "All" values are ignored.
func ParseListFilter(get func(string) string) ListFilter {
	filter := ListFilter{Fields: make(map[string]string)}
	filter.FeedbackID = strings.TrimSpace(get(FeedbackIDParam))
	for _, p := range FilterParams {
		v := strings.TrimSpace(get(p.Param))
		if v == "" || v == FilterAll {
			continue
		}
		filter.Fields[p.Field] = v
	}
	return filter
}
