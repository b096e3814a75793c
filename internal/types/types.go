package types

// Benchmark identifies what is being built and with which fuzzer.
type Benchmark struct {
	Name   string `json:"name" toml:"name"`
	Fuzzer string `json:"fuzzer" toml:"fuzzer"`
}

// FuzzRequest carries the arguments the benchmarking framework passes to a
// fuzzer integration's fuzz entry point.
type FuzzRequest struct {
	Benchmark    Benchmark `json:"benchmark"`
	InputCorpus  string    `json:"input_corpus"`
	OutputCorpus string    `json:"output_corpus"`
	TargetBinary string    `json:"target_binary"`
	OutDir       string    `json:"out_dir"`
	// Env is the complete environment of the fuzzer process.
	Env []string `json:"-"`
}
