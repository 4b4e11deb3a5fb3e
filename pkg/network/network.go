// Package network reconciles per-pair correction coefficients into
// per-acquisition values by inverting the interferogram network, one
// weighted least-squares system per canonical coefficient.
//
// Each pair k observes d_k = x[secondary] - x[primary]. An extra anchor row
// pins x[reference] = 0, where the reference is the first acquisition of the
// baseline table. Pair rows are weighted by
//
//	sigma_k = 1/exp(-dt_k/2) + 1/(extent_k/height)
//
// so that short temporal baselines and long interferograms are trusted more.
package network

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"gonum.org/v1/gonum/mat"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/solver"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/table"
)

var (
	// ErrDisconnected is reported for every column when some pair cannot
	// be reached from the reference acquisition
	ErrDisconnected = errors.New("network: acquisition graph is not connected to the reference")

	// ErrUnknownAcquisition is returned when a pair references an
	// acquisition missing from the baseline table
	ErrUnknownAcquisition = errors.New("network: unknown acquisition")
)

// Params controls the inversion
type Params struct {
	// Height is the number of lines of the reference geometry
	Height int

	// Iterations caps the weighted refinement of every column
	Iterations int
}

// Column is the outcome of one coefficient column
type Column struct {
	// Values holds one value per acquisition (nil when Err is set)
	Values []float64

	// Solve carries the solver diagnostics
	Solve solver.Result

	// Err is set when the column could not be inverted
	Err error
}

// Field is the per-acquisition coefficient field produced by Invert
type Field struct {
	// Acquisitions are the network nodes, in baseline table order
	Acquisitions []models.Acquisition

	// Columns holds one inversion per canonical slot
	Columns [model.NumCoefficients]Column

	index map[string]int
}

// Value returns the inverted value of slot for an acquisition
func (f *Field) Value(id string, slot model.Slot) (float64, bool) {
	i, ok := f.index[id]
	col := f.Columns[slot]
	if !ok || col.Err != nil {
		return 0, false
	}
	return col.Values[i], true
}

// Failed returns the slots whose inversion failed
func (f *Field) Failed() []model.Slot {
	var out []model.Slot
	for s, col := range f.Columns {
		if col.Err != nil {
			out = append(out, model.Slot(s))
		}
	}
	return out
}

// Reconcile re-differences the inverted field for the pair of row:
// value(secondary) - value(primary) for every inverted column. The
// constant term and failed columns keep the per-pair value.
func (f *Field) Reconcile(row table.Row) model.Coefficients {
	out := row.Coefficients
	for s := range f.Columns {
		slot := model.Slot(s)
		if slot == model.Constant {
			continue
		}
		v2, ok2 := f.Value(row.Secondary, slot)
		v1, ok1 := f.Value(row.Primary, slot)
		if ok1 && ok2 {
			out[s] = v2 - v1
		}
	}
	return out
}

// Design holds the network system shared by every column
type Design struct {
	// G is the (pairs+1) x acquisitions edge matrix with the anchor row last
	G *mat.Dense

	// Sigma holds the per-row uncertainties; the anchor row has 1
	Sigma []float64

	// Connected is false when a pair is not reachable from the reference
	Connected bool
}

// BuildDesign assembles the edge matrix, the anchor row and the weights
func BuildDesign(rows []table.Row, acqs []models.Acquisition, height int) (*Design, error) {
	if len(acqs) == 0 {
		return nil, fmt.Errorf("network: empty baseline table")
	}
	if height <= 0 {
		return nil, fmt.Errorf("network: invalid image height %d", height)
	}
	index := indexOf(acqs)
	nPairs, nAcq := len(rows), len(acqs)

	G := mat.NewDense(nPairs+1, nAcq, nil)
	sigma := make([]float64, nPairs+1)
	for k, r := range rows {
		i1, ok1 := index[r.Primary]
		i2, ok2 := index[r.Secondary]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: pair %s-%s", ErrUnknownAcquisition, r.Primary, r.Secondary)
		}
		G.Set(k, i1, -1)
		G.Set(k, i2, 1)
		sigma[k] = PairSigma(acqs[i2].TempBaseline-acqs[i1].TempBaseline, r.Extent, float64(height))
	}
	G.Set(nPairs, 0, 1)
	sigma[nPairs] = 1

	_, connected, err := reachability(rows, acqs)
	if err != nil {
		return nil, err
	}
	return &Design{G: G, Sigma: sigma, Connected: connected}, nil
}

// PairSigma returns the uncertainty of one pair observation from its
// temporal separation and usable extent.
func PairSigma(dt, extent, height float64) float64 {
	w1 := math.Exp(-math.Abs(dt) / 2)
	w2 := extent / height
	return 1/w1 + 1/w2
}

// Invert solves every canonical column independently and concurrently.
// The constant column is inverted for diagnostics only; Reconcile never
// uses it. Failed columns are reported in the field and logged, never fatal.
func Invert(rows []table.Row, acqs []models.Acquisition, p Params, logger *log.Logger) (*Field, error) {
	if logger == nil {
		logger = log.Default()
	}
	if p.Iterations <= 0 {
		p.Iterations = solver.NetworkIterations
	}
	design, err := BuildDesign(rows, acqs, p.Height)
	if err != nil {
		return nil, err
	}

	field := &Field{Acquisitions: acqs, index: indexOf(acqs)}
	if !design.Connected {
		for s := range field.Columns {
			field.Columns[s].Err = ErrDisconnected
		}
		logger.Printf("network inversion skipped: %v", ErrDisconnected)
		return field, nil
	}

	var wg sync.WaitGroup
	for s := 0; s < model.NumCoefficients; s++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			field.Columns[slot] = solveColumn(design, rows, slot, p.Iterations)
		}(s)
	}
	wg.Wait()

	for s, col := range field.Columns {
		if col.Err != nil {
			logger.Printf("network inversion of %s failed, keeping per-pair values: %v", model.Slot(s), col.Err)
		} else if col.Solve.Fallback {
			logger.Printf("network inversion of %s kept the least-squares seed: %s", model.Slot(s), col.Solve.Reason)
		}
	}
	return field, nil
}

// solveColumn inverts one canonical slot
func solveColumn(design *Design, rows []table.Row, slot, iterations int) Column {
	d := make([]float64, len(rows)+1)
	for k, r := range rows {
		d[k] = r.Coefficients[slot]
	}

	res, err := solver.Solve(design.G, d, design.Sigma, iterations)
	if err != nil {
		return Column{Err: err}
	}

	// Only connected designs are solved, so every observed acquisition
	// shares the reference component. Shift it so the reference is exactly 0.
	values := make([]float64, len(res.X))
	ref := res.X[0]
	for i, v := range res.X {
		values[i] = v - ref
	}
	return Column{Values: values, Solve: res}
}

// reachability runs a breadth-first search from the reference over the
// graph whose edges are the pairs.
func reachability(rows []table.Row, acqs []models.Acquisition) ([]bool, bool, error) {
	g := core.NewGraph(core.WithMultiEdges())
	for _, a := range acqs {
		if err := g.AddVertex(a.ID); err != nil {
			return nil, false, fmt.Errorf("network graph: %w", err)
		}
	}
	for _, r := range rows {
		if r.Primary == r.Secondary {
			continue
		}
		if _, err := g.AddEdge(r.Primary, r.Secondary, 0); err != nil {
			return nil, false, fmt.Errorf("network graph: %w", err)
		}
	}

	res, err := bfs.BFS(g, acqs[0].ID)
	if err != nil {
		return nil, false, fmt.Errorf("network graph: %w", err)
	}

	reached := make([]bool, len(acqs))
	for i, a := range acqs {
		_, reached[i] = res.Depth[a.ID]
	}
	index := indexOf(acqs)
	connected := true
	for _, r := range rows {
		if !reached[index[r.Primary]] || !reached[index[r.Secondary]] {
			connected = false
			break
		}
	}
	return reached, connected, nil
}

func indexOf(acqs []models.Acquisition) map[string]int {
	index := make(map[string]int, len(acqs))
	for i, a := range acqs {
		index[a.ID] = i
	}
	return index
}
