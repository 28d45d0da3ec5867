package quiz

// shuffle returns a uniformly random permutation of answers using Fisher–Yates. intN(n) must
// return a uniform integer in [0, n). The input is not modified.
func shuffle(answers []string, intN func(n int) int) []string {
	out := make([]string, len(answers))
	copy(out, answers)

	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
