package version

// VERSION is replaced at build time, e.g.
//
//	go build -ldflags "-X github.com/coreason-ai/pmc-etl/version.VERSION=v1.2.0"
var VERSION = "dev"
