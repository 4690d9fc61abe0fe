package featurestore

import "context"

// Job tracks a training dataset materialization running in the background.
type Job struct {
	ID string

	done    chan struct{}
	dataset TrainingDataset
	err     error
}

func newJob(id string) *Job {
	return &Job{ID: id, done: make(chan struct{})}
}

func (j *Job) finish(td TrainingDataset, err error) {
	j.dataset = td
	j.err = err
	close(j.done)
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx is done. The job keeps running
// if ctx is cancelled first.
func (j *Job) Wait(ctx context.Context) (TrainingDataset, error) {
	select {
	case <-ctx.Done():
		return TrainingDataset{}, ctx.Err()
	case <-j.done:
		return j.dataset, j.err
	}
}
