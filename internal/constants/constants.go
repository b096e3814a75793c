package constants

var (
	// Framework environment
	SourceDirEnv  = "SRC"
	WorkDirEnv    = "WORK"
	OutDirEnv     = "OUT"
	BenchmarkEnv  = "BENCHMARK"
	FuzzerEnv     = "FUZZER"
	FuzzerLibEnv  = "FUZZER_LIB"
	FuzzEngineEnv = "LIB_FUZZING_ENGINE"
	MaxTimeEnv    = "MAX_TOTAL_TIME"
	ConfigEnv     = "BENCHFUZZ_CONFIG"

	// Build
	BuildScriptName = "build.sh"
	BuildShell      = "/bin/bash"
	DefaultConfig   = "/benchfuzz.toml"
	StagingPrefix   = "benchfuzz-stage-"
	DefaultSeedName = "default_seed"

	// Toolchains
	ClangCC          = "clang"
	ClangCXX         = "clang++"
	AFLClangFast     = "/afl/afl-clang-fast"
	AFLClangFastPlus = "/afl/afl-clang-fast++"
	LibFuzzerLib     = "/usr/lib/libFuzzer.a"
	AFLDriverLib     = "/libAFLDriver.a"

	// Nautilus
	NautilusFuzzer   = "/nautilus/target/release/fuzzer"
	NautilusConfig   = "/nautilus/config.ron"
	NautilusGrammars = "/nautilus/grammars"

	// Unparser
	UnparserRubyFuzzer = "/thesis/ruby/target/release/unparser-ruby"

	// Fuzzing output
	CorpusArchivePrefix = "corpus-archive-"
	FuzzerStatsFile     = "fuzzer_stats"
)
