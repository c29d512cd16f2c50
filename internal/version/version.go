package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
