// Package alto2fixture turns alto2txt newspaper metadata archives into
// relational fixture files.
package alto2fixture

const (
	AppName = "alto2fixture"
	Version = "0.2.0"
)
