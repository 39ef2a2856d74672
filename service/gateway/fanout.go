package gateway

type fanoutJob struct {
	sinks   []Sink
	payload []byte
}

// Fanout delivers one encoded frame to many sinks through a small worker
// pool so a large room never stalls the dispatching handler. With zero
// workers jobs run inline, which small deployments and tests rely on for
// deterministic delivery.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	f := &Fanout{}
	if workers <= 0 {
		return f
	}
	f.jobs = make(chan fanoutJob, queue)
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				deliver(job)
			}
		}()
	}
	return f
}

func deliver(job fanoutJob) {
	for _, s := range job.sinks {
		// Slow clients are skipped; Push never blocks.
		s.Push(job.payload)
	}
}

func (f *Fanout) Broadcast(sinks []Sink, payload []byte) {
	if len(sinks) == 0 || len(payload) == 0 {
		return
	}
	job := fanoutJob{sinks: sinks, payload: payload}
	if f.jobs == nil {
		deliver(job)
		return
	}
	f.jobs <- job
}

// Close stops the workers after the queue drains. Only meaningful for
// pooled mode.
func (f *Fanout) Close() {
	if f.jobs != nil {
		close(f.jobs)
	}
}
