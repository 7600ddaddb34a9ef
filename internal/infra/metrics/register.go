package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// collectors is filled by init() in each metrics file.
var collectors []prometheus.Collector

func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// RegisterWith adds every relay collector to reg. Collectors reg already
// holds are skipped, so calling it again is harmless.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var dup prometheus.AlreadyRegisteredError
			if errors.As(err, &dup) {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegister registers with the default registry served on /metrics.
func MustRegister() {
	if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}
