package core

import "time"

// Waiter decides how long the driver busy-polls a status register.
// Wait calls ready until it returns true and reports whether it did;
// false means the budget ran out and the caller returns ErrTimeout.
type Waiter interface {
	Wait(ready func() bool) bool
}

// Forever polls without a bound. A device holding SCL low hangs the caller.
type Forever struct{}

func (Forever) Wait(ready func() bool) bool {
	for !ready() {
	}
	return true
}

// Polls bounds a wait by the number of status reads.
type Polls int

func (n Polls) Wait(ready func() bool) bool {
	for i := 0; i < int(n); i++ {
		if ready() {
			return true
		}
	}
	return false
}

// Deadline bounds a wait by wall-clock time measured from the first poll.
type Deadline time.Duration

func (d Deadline) Wait(ready func() bool) bool {
	end := time.Now().Add(time.Duration(d))
	for {
		if ready() {
			return true
		}
		if time.Now().After(end) {
			return false
		}
	}
}
