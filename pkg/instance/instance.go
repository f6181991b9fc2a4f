// Package instance names the running replica in logs and lock ownership.
package instance

import (
	"fmt"
	"os"
	"sync"
)

var (
	once sync.Once
	id   string
)

// ID returns VERTEX_INSTANCE_ID when set, otherwise the hostname and pid.
// The value is resolved once per process.
func ID() string {
	once.Do(func() {
		id = resolve(os.Getenv("VERTEX_INSTANCE_ID"), os.Hostname, os.Getpid())
	})
	return id
}

func resolve(explicit string, hostname func() (string, error), pid int) string {
	if explicit != "" {
		return explicit
	}
	host, err := hostname()
	if err != nil || host == "" {
		host = "vertex"
	}
	return fmt.Sprintf("%s-%d", host, pid)
}
