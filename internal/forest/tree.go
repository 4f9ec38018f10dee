package forest

import (
	"math/rand/v2"
	"sort"
)

// leaf marks a node without children
const leaf = -1

// Node is one tree node. Leaves carry the mean target of their samples
// (class-1 fraction for classification).
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART tree stored as a flat node slice, root first
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x down the tree
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the longest root-to-leaf path
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// builder grows a tree by minimising the summed squared error of the children.
// For 0/1 targets this is the same split ordering as Gini impurity.
type builder struct {
	X        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	mtry     int
	rng      *rand.Rand
	nodes    []Node
	features []int
}

func grow(X [][]float64, y []float64, samples []int, cfg Config, mtry int, rng *rand.Rand) Tree {
	b := &builder{
		X:        X,
		y:        y,
		maxDepth: cfg.MaxDepth,
		minLeaf:  max(cfg.MinSamplesLeaf, 1),
		mtry:     mtry,
		rng:      rng,
		features: make([]int, len(X[0])),
	}
	for i := range b.features {
		b.features[i] = i
	}
	b.split(samples, 0)
	return Tree{Nodes: b.nodes}
}

type candidate struct {
	feature   int
	threshold float64
	cost      float64
	cut       int // samples[:cut] go left after sorting by feature
}

func (b *builder) split(samples []int, depth int) int {
	id := len(b.nodes)
	sum, sumSq := 0.0, 0.0
	for _, s := range samples {
		sum += b.y[s]
		sumSq += b.y[s] * b.y[s]
	}
	n := float64(len(samples))
	b.nodes = append(b.nodes, Node{Left: leaf, Right: leaf, Value: sum / n})

	parentCost := sumSq - sum*sum/n
	if parentCost <= 1e-12 ||
		len(samples) < 2*b.minLeaf ||
		(b.maxDepth > 0 && depth >= b.maxDepth) {
		return id
	}

	best := candidate{feature: -1, cost: parentCost - 1e-12}
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	order := make([]int, len(samples))
	for _, f := range b.features[:b.mtry] {
		copy(order, samples)
		sort.SliceStable(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

		leftSum, leftSq := 0.0, 0.0
		for i := 0; i < len(order)-1; i++ {
			v := b.y[order[i]]
			leftSum += v
			leftSq += v * v

			nl := i + 1
			nr := len(order) - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			cur, next := b.X[order[i]][f], b.X[order[i+1]][f]
			if cur == next {
				continue
			}

			rightSum := sum - leftSum
			rightSq := sumSq - leftSq
			cost := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if cost < best.cost {
				threshold := cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
				best = candidate{feature: f, threshold: threshold, cost: cost, cut: nl}
			}
		}
	}

	if best.feature < 0 {
		return id
	}

	left := make([]int, 0, best.cut)
	right := make([]int, 0, len(samples)-best.cut)
	for _, s := range samples {
		if b.X[s][best.feature] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.split(left, depth+1)
	r := b.split(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}
