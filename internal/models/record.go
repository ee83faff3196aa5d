package models

import "time"

// Record is one extracted feedback document. Keys follow SchemaFields plus
// OriginalTextKey, ImageURLKey and, once persisted, CreatedAtKey / IDKey.
type Record map[string]any

const (
	OriginalTextKey = "original_text"
	ImageURLKey     = "image_url"
	CreatedAtKey    = "created_at"
	IDKey           = "_id"
)

// FieldKind tells the prompt renderer how a field is described to the model.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindYesNo
	KindEnum
)

// Field is one extraction target.
type Field struct {
	Name   string
	Kind   FieldKind
	Values []string
	Hint   string
}

var yesNo = []string{"Yes", "No"}

// SchemaFields is the fixed extraction schema in prompt order.
var SchemaFields = []Field{
	{Name: "purchased", Kind: KindYesNo, Values: yesNo},
	{Name: "salesperson_name", Kind: KindText},
	{Name: "item_type", Kind: KindEnum, Values: []string{
		"Bangle", "Chain", "Bracelet", "Necklace", "Earring", "Ring", "Pendant Set",
		"Stud", "Locket", "Hand Chain", "Nose Pin", "Mangal Sutra", "Thali", "Band Ring",
	}},
	{Name: "metal_type", Kind: KindEnum, Values: []string{"22K", "18K", "24K", "Diamond", "Other"}},
	{Name: "reason_price", Kind: KindYesNo, Values: yesNo},
	{Name: "reason_size", Kind: KindYesNo, Values: yesNo},
	{Name: "reason_weight", Kind: KindYesNo, Values: yesNo},
	{Name: "reason_zeromaking", Kind: KindYesNo, Values: yesNo},
	{Name: "reason_design_outofstock", Kind: KindYesNo, Values: yesNo,
		Hint: "customer wanted a design that exists in the catalog but is currently out of stock"},
	{Name: "reason_design_new", Kind: KindYesNo, Values: yesNo,
		Hint: "customer requested a new or custom design that does not exist in the catalog"},
	{Name: "required_size", Kind: KindNumber},
	{Name: "required_weight", Kind: KindNumber},
	{Name: "available_size", Kind: KindNumber},
	{Name: "available_weight", Kind: KindNumber},
	{Name: "asked_price", Kind: KindNumber},
	{Name: "given_price", Kind: KindNumber},
	{Name: "design_type", Kind: KindEnum, Values: []string{
		"Coins / Bars", "Daily Wear", "Custom Order", "Bridal jewellery", "Kids Jewellery",
		"Men's Jewellery", "Temple", "Antique", "Turkish", "Calcutta", "Delhi", "Rajkot",
		"Local", "Singapore", "Bombay", "Italian",
	}},
	{Name: "item_category", Kind: KindText},
	{Name: "customer_intent", Kind: KindEnum, Values: []string{
		"Just Looking", "Serious Buyer", "Price Checking", "Return Customer",
	}},
	{Name: "is_previous_cust", Kind: KindYesNo, Values: yesNo},
	{Name: "type_of_customer", Kind: KindEnum, Values: []string{"tourist", "resident", "none"}},
	{Name: "M_Source", Kind: KindEnum, Values: []string{
		"walkin", "Social Media", "Social Groups", "Whatsup Groups", "Corporates",
		"Residential Cmty", "Local Cmty", "HNTW", "Hotels", "Tourism Companies",
		"Tour Drivers", "Other Tours Assctd cmpy", "DGJG", "Product Launch", "Other", "none",
	}},
	{Name: "M_source_Tag", Kind: KindText},
	{Name: "design_preference", Kind: KindEnum, Values: []string{"Liked", "Disliked", "Neutral"}},
	{Name: "store_impression", Kind: KindEnum, Values: []string{"Good", "Poor", "Neutral"}},
	{Name: "customer_mood", Kind: KindEnum, Values: []string{"Happy", "Frustrated", "Neutral", "Disappointed"}},
	{Name: "customer_support", Kind: KindEnum, Values: []string{"Excellent", "Good", "Average", "Poor"}},
	{Name: "purchase_satisfaction", Kind: KindEnum, Values: []string{
		"Very Satisfied", "Satisfied", "Neutral", "Dissatisfied",
	}},
	{Name: "waiting_time", Kind: KindEnum, Values: []string{"Very Fast", "Fast", "Average", "Slow", "Very Slow"}},
	{Name: "contact_number", Kind: KindText},
}

var schemaIndex = func() map[string]struct{} {
	idx := make(map[string]struct{}, len(SchemaFields)+1)
	for _, f := range SchemaFields {
		idx[f.Name] = struct{}{}
	}
	idx[OriginalTextKey] = struct{}{}
	return idx
}()

// IsSchemaKey reports whether key is one of the extraction keys, original_text included.
func IsSchemaKey(key string) bool {
	_, ok := schemaIndex[key]
	return ok
}

// SchemaKeys returns the extraction keys in prompt order, original_text included.
func SchemaKeys() []string {
	keys := make([]string, 0, len(SchemaFields)+1)
	for _, f := range SchemaFields {
		keys = append(keys, f.Name)
	}
	return append(keys, OriginalTextKey)
}

// NullRecord returns a record with every schema field null.
func NullRecord(originalText string, imageURL *string) Record {
	rec := make(Record, len(SchemaFields)+2)
	for _, f := range SchemaFields {
		rec[f.Name] = nil
	}
	rec[OriginalTextKey] = originalText
	rec.SetImageURL(imageURL)
	return rec
}

// SetImageURL overwrites image_url; nil stores an explicit null.
func (r Record) SetImageURL(url *string) {
	if url == nil {
		r[ImageURLKey] = nil
		return
	}
	r[ImageURLKey] = *url
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value of key when it is a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// StampCreated sets created_at to now in UTC.
func (r Record) StampCreated(now time.Time) {
	r[CreatedAtKey] = now.UTC()
}
