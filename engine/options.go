package engine

import "time"

// Option configures an Interpreter, the same functional-options shape used
// throughout the corpus for optional runtime knobs.
type Option func(*interpreterConfig)

type interpreterConfig struct {
	maxSteps          int
	runTimeout        time.Duration
	blockTimeout      time.Duration
	loopMaxIterations int
	maxGotoConcurrent int
	public            bool
}

func defaultInterpreterConfig() interpreterConfig {
	return interpreterConfig{
		maxSteps:          1000,
		runTimeout:        5 * time.Minute,
		blockTimeout:      DefaultServerBlockTimeout,
		loopMaxIterations: 0, // 0 == uncapped unless a block sets loop_max_iterations
		maxGotoConcurrent: 10,
	}
}

// WithMaxSteps overrides the default 1000-step run budget (§4.4 CHECK_BUDGETS).
func WithMaxSteps(n int) Option {
	return func(c *interpreterConfig) { c.maxSteps = n }
}

// WithRunTimeout overrides the default 5-minute (300_000ms) private run
// budget; public runs should pass 30 * time.Second per §5.
func WithRunTimeout(d time.Duration) Option {
	return func(c *interpreterConfig) { c.runTimeout = d }
}

// WithBlockTimeout overrides the default per-block timeout (60s server,
// 10s public per §4.3).
func WithBlockTimeout(d time.Duration) Option {
	return func(c *interpreterConfig) { c.blockTimeout = d }
}

// WithLoopMaxIterations sets the engine-wide default loop cap used when a
// goto block's logic doesn't carry its own loop_max_iterations (Open
// Question 2: the option name chosen for that per-block key).
func WithLoopMaxIterations(n int) Option {
	return func(c *interpreterConfig) { c.loopMaxIterations = n }
}

// WithMaxGotoConcurrent overrides the default 10 concurrent deferred-goto
// branches (§4.4).
func WithMaxGotoConcurrent(n int) Option {
	return func(c *interpreterConfig) { c.maxGotoConcurrent = n }
}

// WithPublicRun marks the interpreter as executing public (unauthenticated)
// triggers: every run it executes is checked against the public block-type
// allowlist and gets at most DefaultPublicBlockTimeout per block, as if
// RunConfig.Public were set. The Execution Service remains the primary
// enforcement point (§4.4).
func WithPublicRun() Option {
	return func(c *interpreterConfig) { c.public = true }
}
