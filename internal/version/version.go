package version

// Version is the current version of junoscope.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "0.4.0"
