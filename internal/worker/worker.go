package worker

type poolWorker struct {
	pool       *jobChannelPool
	dispatcher *Dispatcher
	jobChannel chan Job
}

func newWorker(pool *jobChannelPool, dispatcher *Dispatcher) *poolWorker {
	return &poolWorker{
		pool:       pool,
		dispatcher: dispatcher,
		jobChannel: make(chan Job),
	}
}

func (w *poolWorker) start() {
	go func() {
		for {
			// register as idle before waiting for work
			w.pool.release(w.jobChannel)
			job := <-w.jobChannel
			if job.stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.execute(job)
		}
	}()
}

func (w *poolWorker) execute(job Job) {
	var res Result
	if err := job.Ctx.Err(); err != nil {
		// caller gave up while the job sat in the queue
		res = Result{Err: err}
	} else {
		res.Text, res.Err = job.Run(job.Ctx)
	}
	if job.resultCh != nil {
		job.resultCh <- res
	}
	if w.dispatcher != nil {
		w.dispatcher.complete(job.SessionID)
	}
}
