package quizbuilder

import "log"

var verboseMode bool

// SetVerbose toggles diagnostic logging of per-cycle outcomes.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// VerboseLog logs only when verbose mode is enabled.
func VerboseLog(format string, v ...interface{}) {
	if verboseMode {
		log.Printf(format, v...)
	}
}
