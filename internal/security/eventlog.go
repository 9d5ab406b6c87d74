package security

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventLog appends security events to a daily log file under the logs
// directory. Logging is best effort: a failed append never blocks the
// request that triggered it.
type EventLog struct {
	dir string
}

func NewEventLog(dir string) *EventLog {
	return &EventLog{dir: dir}
}

// Record writes one event line to today's security log.
func (l *EventLog) Record(event, details, ip, userAgent string) {
	if l == nil || l.dir == "" {
		return
	}
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return
	}

	if ip == "" {
		ip = "unknown"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}

	now := time.Now()
	name := filepath.Join(l.dir, "security_"+now.Format("2006-01-02")+".log")
	line := fmt.Sprintf("[%s] IP: %s | Event: %s | Details: %s | User-Agent: %s\n",
		now.Format("2006-01-02 15:04:05"), ip, event, details, userAgent)

	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}
