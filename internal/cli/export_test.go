package cli

// NewRootCmd builds the command tree over a caller-supplied opener
var NewRootCmd = newRootCmd
