package domain

import "strings"

// Kind enumerates the submission operations of the metrics backend.
type Kind uint8

const (
	// KindUnsupported marks a suffix with no matching submission operation.
	KindUnsupported Kind = iota
	// KindGauge reports a point-in-time value.
	KindGauge
	// KindCount adds the value to a counter.
	KindCount
	// KindDecrement subtracts the value from a counter.
	KindDecrement
	// KindHistogram feeds a host-side histogram.
	KindHistogram
	// KindDistribution feeds a server-side distribution.
	KindDistribution
	// KindTiming reports a duration in milliseconds.
	KindTiming
	// KindSet counts unique values.
	KindSet
	// KindEvent posts an event whose text is the value.
	KindEvent
	// KindServiceCheck reports a check status (0 ok, 1 warn, 2 critical, 3 unknown).
	KindServiceCheck
)

var kindBySuffix = map[string]Kind{
	"gauge":         KindGauge,
	"increment":     KindCount,
	"counter":       KindCount,
	"count":         KindCount,
	"decrement":     KindDecrement,
	"histogram":     KindHistogram,
	"distribution":  KindDistribution,
	"timing":        KindTiming,
	"set":           KindSet,
	"event":         KindEvent,
	"service_check": KindServiceCheck,
}

var kindNames = [...]string{
	KindUnsupported:  "unsupported",
	KindGauge:        "gauge",
	KindCount:        "count",
	KindDecrement:    "decrement",
	KindHistogram:    "histogram",
	KindDistribution: "distribution",
	KindTiming:       "timing",
	KindSet:          "set",
	KindEvent:        "event",
	KindServiceCheck: "service_check",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnsupported]
}

// ParseKind resolves a key suffix. Unknown suffixes yield KindUnsupported.
func ParseKind(suffix string) Kind {
	if k, ok := kindBySuffix[suffix]; ok {
		return k
	}
	return KindUnsupported
}

// SplitKey splits key on its last delimiter into the metric name and the kind suffix.
func SplitKey(key string) (name, suffix string) {
	i := strings.LastIndex(key, KeyDelimiter)
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// MetricSample is one value ready for submission.
type MetricSample struct {
	Value any
	Name  string
	Kind  Kind
}
