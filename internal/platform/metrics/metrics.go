// Package metrics exposes pipeline counters through Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	proofsGenerated *prometheus.CounterVec
	proofFailures   *prometheus.CounterVec
	decrypted       prometheus.Counter
	decryptFailures prometheus.Counter
}

// NewRecorder registers the client metrics on the given registerer (use
// prometheus.DefaultRegisterer in the binary, a fresh registry in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		proofsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkchat",
			Name:      "proofs_generated_total",
			Help:      "Group membership proofs generated, by kind.",
		}, []string{"kind"}),
		proofFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkchat",
			Name:      "proof_failures_total",
			Help:      "Failed proof attempts, by reason.",
		}, []string{"reason"}),
		decrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zkchat",
			Name:      "messages_decrypted_total",
			Help:      "Direct messages decrypted successfully.",
		}),
		decryptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zkchat",
			Name:      "decrypt_failures_total",
			Help:      "Direct messages whose ciphertext could not be decrypted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.proofsGenerated, r.proofFailures, r.decrypted, r.decryptFailures)
	}
	return r
}

func (r *Recorder) ProofGenerated(kind string) {
	r.proofsGenerated.WithLabelValues(kind).Inc()
}

func (r *Recorder) ProofFailed(reason string) {
	r.proofFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) MessageDecrypted() {
	r.decrypted.Inc()
}

func (r *Recorder) DecryptFailed() {
	r.decryptFailures.Inc()
}
