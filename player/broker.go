package player

import (
	"sync"
	"time"
)

type (
	// Broker is the centralized message transport between the processor
	// (audio thread) and the controller (control thread). It is
	// many-to-one communication, implemented with one channel for each
	// recipient. Additionally, the broker has a sync.Pool of float32
	// buffers, from which the processor gets and returns the scratch it
	// measures output levels with, without allocating new memory every
	// time.
	//
	// For closing the controller goroutine, the broker has a
	// CloseController channel with a capacity of 1, so you can always
	// send an empty message (struct{}{}) to it without blocking. If the
	// channel is already full, someone else has already requested its
	// closure, so dropping the message is fine. FinishedController is
	// never sent to, only closed; wait on it to know the controller loop
	// has drained and exited, combined with a timeout to avoid
	// deadlocks:
	//    select {
	//      case <-FinishedController:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToProcessor  chan any
		ToController chan MsgToController

		CloseController    chan struct{}
		FinishedController chan struct{}

		bufferPool sync.Pool
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToProcessor:        make(chan any, 1024),
		ToController:       make(chan MsgToController, 1024),
		CloseController:    make(chan struct{}, 1),
		FinishedController: make(chan struct{}),
		bufferPool:         sync.Pool{New: func() any { b := make([]float32, 0); return &b }},
	}
}

// GetBuffer returns a float32 buffer from the buffer pool. The buffer is
// guaranteed to be empty. After use it should be returned to the pool with
// PutBuffer.
func (b *Broker) GetBuffer() *[]float32 {
	return b.bufferPool.Get().(*[]float32)
}

// PutBuffer returns a buffer to the buffer pool. If the buffer is not
// empty, its length is reset (but capacity kept) before pooling it.
func (b *Broker) PutBuffer(buf *[]float32) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend is a helper function to send a value to a channel if it is not
// full. It is guaranteed to be non-blocking. Returns true if the value was
// sent, false otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received
// from a channel, or timing out after t. ok is false if the timeout
// occurred or the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
