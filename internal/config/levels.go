package config

import "github.com/TimelordUK/mview/pkg/logformat"

// LevelPatterns converts the configured detection patterns into the
// shape the level detector consumes
func (c LogLevelConfig) LevelPatterns() logformat.LevelPatterns {
	return logformat.LevelPatterns{
		Trace: c.TracePatterns,
		Debug: c.DebugPatterns,
		Info:  c.InfoPatterns,
		Warn:  c.WarnPatterns,
		Error: c.ErrorPatterns,
		Fatal: c.FatalPatterns,
	}
}
