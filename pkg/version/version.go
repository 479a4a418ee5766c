package version

// Version is the release of the roktrack pilot.
const Version = "v0.3.0"
