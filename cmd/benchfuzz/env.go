package main

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/builder"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/pkg/templates"
)

var envCmd = &cobra.Command{
	Use:   "env [KEY...]",
	Short: "Print the build configuration as a bash script",
	Long:  "Print the build configuration benchfuzz would pass to the build, seeded from the environment and the configured env files, as a sourceable bash script.",
	RunE:  runEnv,
}

func init() {
	envCmd.Flags().StringArray("set", nil, "KEY=VALUE override (repeatable)")
	envCmd.Flags().Bool("build-steps", false, "append the build command")
}

func runEnv(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := buildEnvironment(afero.NewOsFs(), c)
	if err != nil {
		return err
	}
	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("malformed --set %q", kv)
		}
		env.Set(k, v)
	}

	out := cmd.OutOrStdout()
	if steps, _ := cmd.Flags().GetBool("build-steps"); steps {
		_, err = fmt.Fprint(out, templates.GenerateBuildSteps(env, constants.BuildShell, builder.ScriptFor(env, c.Build.Script)))
		return err
	}
	_, err = fmt.Fprint(out, templates.GenerateEnvironment(env, args...))
	return err
}
