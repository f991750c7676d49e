package lledit

// Version identifies this build of the engine for diagnostic output; it is
// overridden at link time via -ldflags "-X github.com/lledit/lledit.Version=...".
var Version = "dev"
