package embedding

// ONNX output names.
const (
	// OutputTokens is the per-token output of a transformer export; it is mean-pooled
	// over the attention mask.
	OutputTokens = "last_hidden_state"
	// OutputPooled is the output of an export that already pools to one vector.
	OutputPooled = "sentence_embedding"
)

// MeanPool averages the rows of hidden (len(mask) rows of dims values, row-major) whose
// mask entry is non-zero. With no unmasked rows the result is the zero vector.
func MeanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] /= n
	}
	return out
}
