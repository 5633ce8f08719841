package route

import (
	"errors"
	"strconv"

	"github.com/roach88/gridroute/internal/ir"
)

func isMalformed(err error) bool {
	return errors.Is(err, ir.ErrMalformedIndex)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func identity(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return true
}
