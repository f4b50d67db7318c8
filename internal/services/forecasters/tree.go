package forecasters

import "sort"

// regressionTree is one boosting round: an exact-greedy tree on squared loss gradients.
type regressionTree struct {
	nodes []treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type treeParams struct {
	maxDepth       int
	lambda         float64
	minChildWeight float64
}

// growTree fits a tree to gradients g with unit hessians over rows X[idx].
func growTree(X [][]float64, g []float64, idx []int, p treeParams) *regressionTree {
	t := &regressionTree{}
	t.build(X, g, idx, 0, p)
	return t
}

func (t *regressionTree) build(X [][]float64, g []float64, idx []int, depth int, p treeParams) int {
	var G float64
	for _, i := range idx {
		G += g[i]
	}
	H := float64(len(idx))
	self := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{leaf: true, value: -G / (H + p.lambda)})

	if depth >= p.maxDepth || H < 2*p.minChildWeight {
		return self
	}

	parentScore := G * G / (H + p.lambda)
	bestGain := 0.0
	bestFeature := -1
	var bestThreshold float64

	order := make([]int, len(idx))
	for f := range X[idx[0]] {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var GL, HL float64
		for k := 0; k < len(order)-1; k++ {
			GL += g[order[k]]
			HL++
			lo, hi := X[order[k]][f], X[order[k+1]][f]
			if lo == hi {
				continue
			}
			HR := H - HL
			if HL < p.minChildWeight || HR < p.minChildWeight {
				continue
			}
			GR := G - GL
			gain := GL*GL/(HL+p.lambda) + GR*GR/(HR+p.lambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	if bestFeature < 0 {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] < bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.build(X, g, left, depth+1, p)
	r := t.build(X, g, right, depth+1, p)
	t.nodes[self] = treeNode{feature: bestFeature, threshold: bestThreshold, left: l, right: r}
	return self
}

func (t *regressionTree) predict(x []float64) float64 {
	n := 0
	for !t.nodes[n].leaf {
		if x[t.nodes[n].feature] < t.nodes[n].threshold {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].value
}
