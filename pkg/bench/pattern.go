package bench

import (
	"fmt"
	"math/rand/v2"
)

//seedStream is the second PCG word, seeds only vary the first
const seedStream = 0x9e3779b97f4a7c15

//Op is a single planned I/O
type Op struct {
	Offset int64
	Size   int
}

//Pattern is the finite, deterministic sequence of operations of one test
// within its lane of the benchmark region. Sequential kinds walk the lane from
// its base, once per iteration. Random kinds draw uniformly distributed block
// aligned offsets over the lane, without replacement across the whole test
// when there are enough distinct blocks and with replacement otherwise.
type Pattern struct {
	spec            TestSpec
	lane            Region
	seed            uint64
	slots           int64
	total           int
	withReplacement bool
}

//NewPattern creates the pattern for a spec in a lane
func NewPattern(spec TestSpec, lane Region, seed uint64) (*Pattern, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if lane.Offset < 0 || spec.Footprint() > lane.Length {
		return nil, fmt.Errorf("Could not plan %s test: %d bytes do not fit in lane %+v: %w", spec.Kind, spec.Footprint(), lane, ErrInvalidProfile)
	}

	pat := &Pattern{
		spec:  spec,
		lane:  lane,
		seed:  seed,
		slots: lane.Length / spec.BlockSize,
		total: spec.Ops() * spec.Iterations,
	}
	pat.withReplacement = !spec.Kind.Sequential() && int64(pat.total) > pat.slots
	return pat, nil
}

//Len is the total number of operations including all iterations
func (pat *Pattern) Len() int {
	return pat.total
}

//OpsPerIteration is the number of operations between iteration boundaries
func (pat *Pattern) OpsPerIteration() int {
	return pat.spec.Ops()
}

//WithReplacement reports if random offsets may repeat
func (pat *Pattern) WithReplacement() bool {
	return pat.withReplacement
}

//Iterator starts the sequence from the beginning, every iterator of a pattern
// yields the same sequence
func (pat *Pattern) Iterator() *PatternIterator {
	itr := &PatternIterator{pat: pat}
	if !pat.spec.Kind.Sequential() {
		itr.rng = rand.New(rand.NewPCG(pat.seed, seedStream))
		if !pat.withReplacement {
			itr.swapped = make(map[int64]int64)
		}
	}
	return itr
}

//Offsets materializes the whole sequence
func (pat *Pattern) Offsets() []Op {
	ops := make([]Op, 0, pat.total)
	for itr := pat.Iterator(); ; {
		op, ok := itr.Next()
		if !ok {
			return ops
		}
		ops = append(ops, op)
	}
}

//PatternIterator lazily yields a Pattern's operations
type PatternIterator struct {
	pat  *Pattern
	next int
	rng  *rand.Rand
	//swapped holds the displaced entries of a virtual Fisher-Yates shuffle of
	// the slot indexes, only positions that were touched are stored
	swapped map[int64]int64
}

//Next returns the next operation, false once exhausted
func (itr *PatternIterator) Next() (Op, bool) {
	pat := itr.pat
	if itr.next >= pat.total {
		return Op{}, false
	}
	idx := itr.next
	itr.next++

	var slot int64
	switch {
	case pat.spec.Kind.Sequential():
		slot = int64(idx % pat.spec.Ops())
	case pat.withReplacement:
		slot = itr.rng.Int64N(pat.slots)
	default:
		slot = itr.draw(int64(idx))
	}
	return Op{Offset: pat.lane.Offset + slot*pat.spec.BlockSize, Size: int(pat.spec.BlockSize)}, true
}

func (itr *PatternIterator) draw(pos int64) int64 {
	pick := pos + itr.rng.Int64N(itr.pat.slots-pos)
	slot := itr.at(pick)
	itr.swapped[pick] = itr.at(pos)
	delete(itr.swapped, pos)
	return slot
}

func (itr *PatternIterator) at(pos int64) int64 {
	if slot, found := itr.swapped[pos]; found {
		return slot
	}
	return pos
}
