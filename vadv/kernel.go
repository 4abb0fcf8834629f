package vadv

import "github.com/LynnColeArt/sbench/storage"

const (
	dtrStage = 3.0 / 20.0
	betaV    = 0.0
	betM     = 0.5 * (1.0 - betaV)
	betP     = 0.5 * (1.0 + betaV)
)

// columns holds the fields and strides of one run. forward and backward
// advance a single column by one level; every strategy is an ordering of
// these calls, and the explicit conversions keep each product rounded on
// its own, so the strategies agree bit for bit.
type columns[T storage.Float] struct {
	ccol, dcol, datacol           []T
	wcon, ustage, upos, utens, ut []T
	out                           []T

	ks    int // k stride
	shift int // offset of the upwind neighbour
	ksize int
}

// forward is one step of the Thomas forward elimination at level k of the
// column whose level-k index is p.
func (c *columns[T]) forward(p, k int) {
	w, us := c.wcon, c.ustage
	ks := c.ks
	first, last := k == 0, k == c.ksize-1

	var gav, gcv T
	if !first {
		gav = T(-0.25 * (w[p+c.shift] + w[p]))
	}
	if !last {
		gcv = T(0.25 * (w[p+c.shift+ks] + w[p+ks]))
	}
	as, cs := T(gav*betM), T(gcv*betM)
	acol, ccol := T(gav*betP), T(gcv*betP)
	bcol := dtrStage - acol - ccol

	var corr T
	if !first {
		corr -= T(as * (us[p-ks] - us[p]))
	}
	if !last {
		corr -= T(cs * (us[p+ks] - us[p]))
	}
	d := T(dtrStage*c.upos[p]) + c.utens[p] + c.ut[p] + corr

	if first {
		div := 1 / bcol
		c.ccol[p] = T(ccol * div)
		c.dcol[p] = T(d * div)
		return
	}
	div := 1 / (bcol - T(c.ccol[p-ks]*acol))
	c.ccol[p] = T(ccol * div)
	c.dcol[p] = T((d - T(c.dcol[p-ks]*acol)) * div)
}

// backward is one step of the back substitution at level k. It writes the
// solution to datacol and the stage tendency to out.
func (c *columns[T]) backward(p, k int) {
	x := c.dcol[p]
	if k < c.ksize-1 {
		x -= T(c.ccol[p] * c.datacol[p+c.ks])
	}
	c.datacol[p] = x
	c.out[p] = T(dtrStage * (x - c.upos[p]))
}

// solve runs one whole column starting at its level-0 index p.
func (c *columns[T]) solve(p int) {
	q := p
	for k := 0; k < c.ksize; k++ {
		c.forward(q, k)
		q += c.ks
	}
	for k := c.ksize - 1; k >= 0; k-- {
		q -= c.ks
		c.backward(q, k)
	}
}
