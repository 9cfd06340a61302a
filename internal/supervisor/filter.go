package supervisor

import "strings"

// Startup noise the managed binaries print on every boot. These lines still
// go to the rotating log files but are not forwarded on the event stream, so
// subscribers do not surface them as activity.
var benignFragments = []string{
	"AH00558", // httpd: could not reliably determine FQDN
	"AH00094", // httpd: command line argument echo
	"[Note]",  // mysqld informational
	"ready for connections",
	"ready to handle connections", // php-fpm startup banner
	"NOTICE: fpm is running",
}

func isBenign(line string) bool {
	for _, f := range benignFragments {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}
