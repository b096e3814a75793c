package templates

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/R9295/thesis-public/internal/buildenv"
	"github.com/R9295/thesis-public/internal/constants"
)

// Constants
var shellPrefix = "#!/bin/bash\n"

// GenerateEnvironment renders cfg as a bash script of export statements.
// Only keys are exported when given; otherwise every variable is.
func GenerateEnvironment(cfg *buildenv.Config, keys ...string) string {
	var buf bytes.Buffer
	buf.WriteString(shellPrefix)
	buf.WriteString(fmt.Sprintf(environmentPrefix,
		cfg.Get(constants.FuzzerEnv), cfg.Get(constants.BenchmarkEnv)))

	if len(keys) == 0 {
		keys = cfg.Keys()
	}
	for _, k := range keys {
		v, ok := cfg.Lookup(k)
		if !ok {
			buf.WriteString(fmt.Sprintf("unset %s\n", k))
			continue
		}
		buf.WriteString(fmt.Sprintf("export %s=%s\n", k, quote(v)))
	}
	return buf.String()
}

// GenerateBuildSteps returns the environment followed by the build command.
func GenerateBuildSteps(cfg *buildenv.Config, shell, script string) string {
	var buf bytes.Buffer
	buf.WriteString(GenerateEnvironment(cfg))
	buf.WriteString(fmt.Sprintf(stagedBuildBlock, shell, script))
	buf.WriteString(fmt.Sprintf("export %s=\"$%s\"\n", constants.FuzzEngineEnv, constants.FuzzerLibEnv))
	buf.WriteString(fmt.Sprintf("%s -ex %s\n", shell, quote(script)))
	return buf.String()
}

// quote single-quotes s for bash.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
