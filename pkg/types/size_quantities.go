package types

import (
	"fmt"
	"math"
	"strings"
)

// Size identifies one apparel size column.
type Size string

const (
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// MaxQuantity bounds a single size count or delta. Stock columns are 32-bit integers.
const MaxQuantity = math.MaxInt32

// Sizes lists every tracked size in display order.
var Sizes = []Size{SizeS, SizeM, SizeL, SizeXL}

// SizeQuantities holds one integer per size. It is embedded into gorm models with a
// column prefix (stock_, delta_, before_, after_, requested_).
type SizeQuantities struct {
	S  int `json:"S" gorm:"column:s;not null;default:0"`
	M  int `json:"M" gorm:"column:m;not null;default:0"`
	L  int `json:"L" gorm:"column:l;not null;default:0"`
	XL int `json:"XL" gorm:"column:xl;not null;default:0"`
}

// Get returns the quantity for size.
func (q SizeQuantities) Get(size Size) int {
	switch size {
	case SizeS:
		return q.S
	case SizeM:
		return q.M
	case SizeL:
		return q.L
	case SizeXL:
		return q.XL
	}
	return 0
}

// Add returns the per-size sum of q and delta.
func (q SizeQuantities) Add(delta SizeQuantities) SizeQuantities {
	return SizeQuantities{
		S:  q.S + delta.S,
		M:  q.M + delta.M,
		L:  q.L + delta.L,
		XL: q.XL + delta.XL,
	}
}

func (q SizeQuantities) IsZero() bool {
	return q.S == 0 && q.M == 0 && q.L == 0 && q.XL == 0
}

// NegativeSizes returns the sizes whose quantity is below zero, in display order.
func (q SizeQuantities) NegativeSizes() []Size {
	var out []Size
	for _, size := range Sizes {
		if q.Get(size) < 0 {
			out = append(out, size)
		}
	}
	return out
}

// OutOfRangeSizes returns the sizes whose magnitude exceeds MaxQuantity.
func (q SizeQuantities) OutOfRangeSizes() []Size {
	var out []Size
	for _, size := range Sizes {
		if v := q.Get(size); v > MaxQuantity || v < -MaxQuantity {
			out = append(out, size)
		}
	}
	return out
}

func (q SizeQuantities) HasNegative() bool {
	return len(q.NegativeSizes()) > 0
}

func (q SizeQuantities) Total() int {
	return q.S + q.M + q.L + q.XL
}

// String renders non-zero sizes as "S:10 M:5", used in email bodies and logs.
func (q SizeQuantities) String() string {
	parts := make([]string, 0, len(Sizes))
	for _, size := range Sizes {
		if v := q.Get(size); v != 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", size, v))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
