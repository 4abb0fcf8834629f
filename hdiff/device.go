package hdiff

import (
	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/storage"
)

// Extra worker rows of a device block: one ring row above and below the
// tile, plus one row each for the i-1 and i+ib halo columns.
const extraRows = 4

// clampTile fits a requested tile to the device. The halo rows are added
// before the platform limit is applied and removed afterwards. Shapes the
// kernel cannot index fall back to the default tile.
func clampTile(d *platform.Device, ib, jb, elemSize int, log *zap.Logger) (int, int) {
	ri, rj := ib, jb
	ib, rows := d.LimitBlocksize(ib, jb+extraRows)
	jb = rows - extraRows

	props := d.Props()
	shared := 3 * (ib + 2) * (jb + 2) * elemSize
	if jb < 1 || jb+2 > props.TileIndexLimit || ib < jb+2 || shared > props.SharedMemPerBlock {
		log.Warn("reset device block size to default to conform to implementation limits",
			zap.Int("requested_i", ri), zap.Int("requested_j", rj),
			zap.Int("i", sbench.DefaultIBlockSize), zap.Int("j", sbench.DefaultJBlockSize))
		return sbench.DefaultIBlockSize, sbench.DefaultJBlockSize
	}
	return ib, jb
}

// tiledKernel builds the shared memory kernel. A block of ib×(jb+4)
// workers owns one ib×jb tile of one level; the grid's z dimension walks
// the levels. Rows 0..jb+1 of the block cover tile rows -1..jb, row jb+2
// covers the i-1 column and row jb+3 the i+ib column, each worker of those
// two rows taking one j.
func tiledKernel[T storage.Float](info *storage.Info, in, coeff, out []T, ib, jb int) (platform.Kernel, platform.Dim3, platform.Dim3) {
	dims := info.LogicalDims()
	isize, jsize, ksize := dims[storage.AxisI], dims[storage.AxisJ], dims[storage.AxisK]
	is, js := info.Stride(storage.AxisI), info.Stride(storage.AxisJ)

	w := ib + 2
	cells := w * (jb + 2)
	esize := storage.ElementSize[T]()

	type position struct {
		ib, jb     int // position inside the tile
		imax, jmax int // tile extent, smaller at the domain edge
		p, c       int // field and scratch index
	}
	locate := func(tid platform.ThreadID) position {
		var pos position
		tx, ty := tid.ThreadIdx.X, tid.ThreadIdx.Y
		switch {
		case ty < jb+2:
			pos.ib, pos.jb = tx, ty-1
		case ty == jb+2:
			pos.ib, pos.jb = -1, tx-1
		default:
			pos.ib, pos.jb = ib, tx-1
		}
		i0, j0 := tid.BlockIdx.X*ib, tid.BlockIdx.Y*jb
		pos.imax = min(ib, isize-i0)
		pos.jmax = min(jb, jsize-j0)
		pos.p = info.Index(i0+pos.ib, j0+pos.jb, tid.BlockIdx.Z)
		pos.c = (pos.ib + 1) + (pos.jb+1)*w
		return pos
	}
	fields := func(shared []byte) (lap, flx, fly []T) {
		return platform.SharedSlice[T](shared, 0, cells),
			platform.SharedSlice[T](shared, cells*esize, cells),
			platform.SharedSlice[T](shared, 2*cells*esize, cells)
	}

	k := platform.Kernel{
		Name:        "hdiff",
		SharedBytes: 3 * cells * esize,
		Phases: []platform.Phase{
			func(tid platform.ThreadID, shared []byte) {
				pos := locate(tid)
				if pos.ib < -1 || pos.ib > pos.imax || pos.jb < -1 || pos.jb > pos.jmax {
					return
				}
				lap, _, _ := fields(shared)
				lap[pos.c] = laplacian(in, pos.p, is, js)
			},
			func(tid platform.ThreadID, shared []byte) {
				pos := locate(tid)
				lap, flx, fly := fields(shared)
				if pos.ib >= -1 && pos.ib < pos.imax && pos.jb >= 0 && pos.jb < pos.jmax {
					flx[pos.c] = limitedFlux(lap[pos.c], lap[pos.c+1], in[pos.p], in[pos.p+is])
				}
				if pos.ib >= 0 && pos.ib < pos.imax && pos.jb >= -1 && pos.jb < pos.jmax {
					fly[pos.c] = limitedFlux(lap[pos.c], lap[pos.c+w], in[pos.p], in[pos.p+js])
				}
			},
			func(tid platform.ThreadID, shared []byte) {
				pos := locate(tid)
				if pos.ib < 0 || pos.ib >= pos.imax || pos.jb < 0 || pos.jb >= pos.jmax {
					return
				}
				_, flx, fly := fields(shared)
				c := pos.c
				out[pos.p] = update(in[pos.p], coeff[pos.p], flx[c], flx[c-1], fly[c], fly[c-w])
			},
		},
	}
	grid := platform.Dim3{X: (isize + ib - 1) / ib, Y: (jsize + jb - 1) / jb, Z: ksize}
	block := platform.Dim3{X: ib, Y: jb + extraRows, Z: 1}
	return k, grid, block
}
