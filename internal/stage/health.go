package stage

import "strings"

// Health is the readiness of one media operation (subtitles or video).
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks an operation that the scheduler would fail on every record,
// usually because its binary is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: strings.TrimSpace(detail)}
}

// NotReady returns the names of operations that are not ready, in input order.
func NotReady(checks []Health) []string {
	var names []string
	for _, h := range checks {
		if !h.Ready {
			names = append(names, h.Name)
		}
	}
	return names
}
