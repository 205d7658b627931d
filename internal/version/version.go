package version

// Version is the current beamdrop release.
// This gets updated by the release workflow.
var Version = "v0.1.0"
