package buildinfo

import (
	"fmt"
	"time"
)

// Set via -ldflags at build time
var (
	BuildTime  string // when the binary was compiled
	CommitTime string // last git commit time (last code edit)
	CommitHash string // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC().Format(time.RFC3339)

// Info is the build metadata reported by /api/status and `labelctl version`
type Info struct {
	BuildTime  string `json:"buildTime"`
	CommitTime string `json:"commitTime"`
	CommitHash string `json:"commitHash"`
	StartTime  string `json:"startTime"`
}

// Get returns the current build metadata, marking unset fields as "dev"
func Get() Info {
	return Info{
		BuildTime:  orDev(BuildTime),
		CommitTime: orDev(CommitTime),
		CommitHash: orDev(CommitHash),
		StartTime:  StartTime,
	}
}

// String formats the info on one line
func (i Info) String() string {
	return fmt.Sprintf("commit %s (%s), built %s", i.CommitHash, i.CommitTime, i.BuildTime)
}

func orDev(s string) string {
	if s == "" {
		return "dev"
	}
	return s
}
