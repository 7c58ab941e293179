package asr

import (
	"sync"

	"tingxie/internal/config"

	"github.com/sirupsen/logrus"
)

var (
	sharedMu     sync.Mutex
	sharedEngine *FunASR
)

// Shared returns the process-wide engine, constructing it on first use. The
// mutex guarantees concurrent callers never build two workers. A construction
// failure is not cached: once the missing model directories are installed the
// next call succeeds without a process restart. A worker that has died is
// discarded and replaced.
func Shared(cfg *config.Config, logger *logrus.Logger) (Engine, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedEngine != nil {
		if sharedEngine.Alive() {
			return sharedEngine, nil
		}
		logger.Warn("recognition worker died, restarting")
		_ = sharedEngine.Close()
		sharedEngine = nil
	}

	eng, err := NewFunASR(cfg, logger)
	if err != nil {
		return nil, err
	}
	sharedEngine = eng
	return sharedEngine, nil
}

// resetShared tears down the shared engine; tests only.
func resetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedEngine != nil {
		_ = sharedEngine.Close()
		sharedEngine = nil
	}
}
