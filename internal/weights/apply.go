package weights

// Float is the set of element types weighted accumulation supports.
type Float interface {
	~float32 | ~float64
}

// Accumulate adds each row of p into dst: dst[at[i]] += sum(factor * vals[pos])
// where at[i] is the element index of p.Rows[i] in dst and vals holds the
// values of p.Sources in order.
func Accumulate[T Float](dst []T, at []int, p *Piece, vals []T) {
	for i, r := range p.Rows {
		var sum T
		for _, term := range r.Terms {
			sum += T(term.Factor) * vals[term.Pos]
		}
		dst[at[i]] += sum
	}
}

// Zero clears the elements of dst listed in at.
func Zero[T Float](dst []T, at []int) {
	for _, i := range at {
		dst[i] = 0
	}
}
