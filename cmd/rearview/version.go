package main

// Version is set by the release process; the default marks developer builds.
var Version = "v1.0.0-dev"
