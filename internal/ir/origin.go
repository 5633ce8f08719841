package ir

// FromOrigin translates axes expressed with the given index origin (1 for
// callers that count from one) into the 0-based form used internally.
// Local ranges shift; the local-to-global mapping is preserved, so a caller
// whose global indices also count from one gets 0-based globals back.
func FromOrigin(axes []AxisIndex, origin int) []AxisIndex {
	out := make([]AxisIndex, len(axes))
	for i, a := range axes {
		out[i] = AxisIndex{
			ExclusiveLo:  a.ExclusiveLo - origin,
			ExclusiveHi:  a.ExclusiveHi - origin,
			TotalLo:      a.TotalLo - origin,
			TotalHi:      a.TotalHi - origin,
			GlobalOffset: a.GlobalOffset,
		}
	}
	return out
}

// ToOrigin is the inverse of FromOrigin.
func ToOrigin(axes []AxisIndex, origin int) []AxisIndex {
	return FromOrigin(axes, -origin)
}
