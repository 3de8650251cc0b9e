// Package config provides the timer pool's configuration: a single
// start_threaded flag behind a thread-safe SafeConfig wrapper.
//
// # Core Components
//
// Config: the pool's only tunable, StartThreaded, controlling whether
// Manager.Init spawns its first worker immediately.
//
// SafeConfig: thread-safe wrapper using RWMutex and deep cloning, matching
// the pattern used throughout this codebase for concurrently-read state.
//
// # Basic Usage
//
//	safeCfg := config.NewSafeConfig(config.DefaultConfig())
//
//	cfg := safeCfg.Get()
//	pool := timerpool.New(source, timerpool.WithStartThreaded(cfg.StartThreaded))
//
//	// Later, to disable auto-start on the next Init:
//	updated := safeCfg.Get()
//	updated.StartThreaded = false
//	if err := safeCfg.Update(updated); err != nil {
//	    log.Printf("config update rejected: %v", err)
//	}
package config
