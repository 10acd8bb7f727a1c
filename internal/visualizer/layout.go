// Package visualizer draws a network's nodes and strongest connections.
//
// A Renderer turns a parameter snapshot into a single frame. A View owns the
// redraw policy: one frame per prop change while static, a ticker-driven
// loop with simulated node activity while training is active.
package visualizer

// Padding is the horizontal margin kept free on both sides of the canvas.
const Padding = 40.0

// Point is a node centre in canvas coordinates.
type Point struct {
	X, Y float64
}

// Layout places the nodes of every column. Columns are spaced evenly
// between the horizontal padding; within a column node i of n sits at
// y = (i+1)·height/(n+1).
func Layout(counts []int, width, height float64) [][]Point {
	cols := len(counts)
	out := make([][]Point, cols)
	for c, n := range counts {
		x := width / 2
		if cols > 1 {
			x = Padding + float64(c)*(width-2*Padding)/float64(cols-1)
		}
		column := make([]Point, n)
		for i := 0; i < n; i++ {
			column[i] = Point{X: x, Y: float64(i+1) * height / float64(n+1)}
		}
		out[c] = column
	}
	return out
}
