package supervisor

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/process"
)

// FuzzerService runs the fuzzer process. A crash of the fuzzer itself is a
// service failure and the supervisor restarts it; a clean exit ends the
// trial.
type FuzzerService struct {
	logger logging.Logger
	spec   process.Spec
}

func NewFuzzerService(spec process.Spec, l logging.Logger) *FuzzerService {
	return &FuzzerService{
		logger: l,
		spec:   spec,
	}
}

func (s *FuzzerService) String() string {
	return "FuzzerService"
}

func (s *FuzzerService) Serve(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("FuzzerService running %s", s.spec))
	err := process.Run(ctx, s.spec, s.logger)
	if ctx.Err() != nil {
		s.logger.Info("FuzzerService stopping")
		return ctx.Err()
	}
	if err != nil {
		s.logger.Error(fmt.Sprintf("FuzzerService fuzzer stopped unexpectedly: %s", err.Error()))
		return err
	}
	s.logger.Info("FuzzerService fuzzer exited")
	return suture.ErrTerminateSupervisorTree
}
