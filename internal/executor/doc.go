// Package executor runs blocking provider calls on a fixed-size worker pool.
// The pool bounds concurrency against the external providers and decouples
// the caller's wait from the call itself: a caller that gives up after the
// result timeout is unblocked with ErrTimeout while the worker keeps running,
// so side effects such as cache population still land for future requests.
// A shared rate limiter in front of the workers provides additional
// backpressure.
package executor
