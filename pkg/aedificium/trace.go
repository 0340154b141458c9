package aedificium

// Distinguishable returns, for every pair of trace steps, whether the
// observation alone proves that the two steps were spent in different rooms:
// either their labels differ, or both steps leave through the same door and
// the steps that follow are themselves distinguishable.
func Distinguishable(plan RoutePlan, trace LabelTrace) [][]bool {
	m := len(trace)
	diff := make([][]bool, m)
	for i := range diff {
		diff[i] = make([]bool, m)
	}
	for i := m - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if i == j {
				continue
			}
			if trace[i] != trace[j] {
				diff[i][j] = true
				continue
			}
			if i < len(plan) && j < len(plan) && plan[i] == plan[j] && diff[i+1][j+1] {
				diff[i][j] = true
			}
		}
	}
	return diff
}
