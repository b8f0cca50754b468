package security

import "strings"

// daemonEnvPrefixes name variables that carry this daemon's own
// credentials. Agent CLIs never need them.
var daemonEnvPrefixes = []string{
	"CRONCLAW_",
	"DISCORD_",
}

// SanitizedEnv returns a copy of environ for agent subprocesses. Variables
// with a daemon prefix are dropped, as is any variable whose value contains
// a literal secret registered on r. Provider keys such as OPENAI_API_KEY
// pass through because the agent CLIs authenticate with them.
func SanitizedEnv(environ []string, r *Redactor) []string {
	result := make([]string, 0, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if isDaemonEnvVar(key) {
			continue
		}
		if r != nil && r.ContainsLiteral(value) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

func isDaemonEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range daemonEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
