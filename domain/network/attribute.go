package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AttributeKind distinguishes numeric, categorical and boolean attribute values.
type AttributeKind uint8

const (
	KindNumber AttributeKind = iota + 1
	KindText
	KindFlag
)

// AttributeValue is a sparse node annotation: a number (fold change, abundance),
// a category (tissue area) or a flag (significance).
type AttributeValue struct {
	kind AttributeKind
	num  float64
	text string
	flag bool
}

// Number creates a numeric attribute value.
func Number(v float64) AttributeValue { return AttributeValue{kind: KindNumber, num: v} }

// Text creates a categorical attribute value.
func Text(v string) AttributeValue { return AttributeValue{kind: KindText, text: v} }

// Flag creates a boolean attribute value.
func Flag(v bool) AttributeValue { return AttributeValue{kind: KindFlag, flag: v} }

// Kind returns the value kind; zero for an unset value.
func (v AttributeValue) Kind() AttributeKind { return v.kind }

// Float returns the numeric value and whether the value is numeric.
func (v AttributeValue) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// String formats the value for display.
func (v AttributeValue) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindFlag:
		return strconv.FormatBool(v.flag)
	default:
		return v.text
	}
}

// Bool returns the flag value and whether the value is a flag.
func (v AttributeValue) Bool() (bool, bool) { return v.flag, v.kind == KindFlag }

// Interface returns the value as a plain Go value for JSON payloads.
func (v AttributeValue) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindFlag:
		return v.flag
	case KindText:
		return v.text
	}
	return nil
}

// Equal reports whether two values have the same kind and content.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindFlag:
		return v.flag == o.flag
	default:
		return v.text == o.text
	}
}

// MarshalJSON encodes numbers as JSON numbers, flags as booleans and text as strings.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("attribute value %v is not representable", v.num)
		}
		return json.Marshal(v.num)
	case KindFlag:
		return json.Marshal(v.flag)
	case KindText:
		return json.Marshal(v.text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = AttributeValue{}
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*v = Flag(data[0] == 't')
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("attribute value: %w", err)
		}
		*v = Number(f)
	}
	return nil
}
