package calibration

import "fmt"

// StratifiedFolds splits row indices into k test folds, dealing each class round-robin
// so every fold keeps the class proportions. Each class needs at least k rows.
func StratifiedFolds(y []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("cv must be >= 2, got %d", k)
	}

	byClass := make(map[int][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	for class, rows := range byClass {
		if len(rows) < k {
			return nil, fmt.Errorf("class %d has %d rows, fewer than cv=%d", class, len(rows), k)
		}
	}

	folds := make([][]int, k)
	for _, class := range []int{0, 1} {
		for j, row := range byClass[class] {
			folds[j%k] = append(folds[j%k], row)
		}
	}
	return folds, nil
}

// Complement returns the rows of 0..n-1 not in fold
func Complement(n int, fold []int) []int {
	in := make([]bool, n)
	for _, i := range fold {
		in[i] = true
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
