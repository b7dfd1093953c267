/*
 * rv64vm - Cycle-ordered event scheduler
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package event schedules callbacks against guest instruction-retired
// counts rather than wall-clock time, for devices that need
// cycle-accurate polling cadence (e.g. a VirtIO queue's "check for new
// descriptors every N instructions" rather than every N milliseconds)
// without owning a goroutine of their own.
package event

import "sync"

type Callback func(arg int)

type pending struct {
	delta int // cycles remaining relative to prev in list
	dev   any // device.Device the event belongs to, for CancelEvent matching
	cb    Callback
	arg   int
	prev  *pending
	next  *pending
}

// Scheduler holds a delta-ordered list of pending callbacks, the same
// shape as a classic delta-time event list: every node stores only
// the cycle delta to the node before it, so advancing time by t is a
// single subtraction off the head rather than a walk of the whole
// list.
type Scheduler struct {
	mu         sync.Mutex
	head, tail *pending
}

func New() *Scheduler {
	return &Scheduler{}
}

// AddEvent schedules cb to run after delay cycles, tagged with dev so
// a later CancelEvent(dev, arg) can find it. delay == 0 runs cb
// immediately on the calling goroutine.
func (s *Scheduler) AddEvent(dev any, cb Callback, delay int, arg int) {
	if delay <= 0 {
		cb(arg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := &pending{delta: delay, dev: dev, cb: cb, arg: arg}

	cur := s.head
	for cur != nil {
		if ev.delta <= cur.delta {
			cur.delta -= ev.delta
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				s.head = ev
			}
			return
		}
		ev.delta -= cur.delta
		cur = cur.next
	}

	ev.prev = s.tail
	if s.tail != nil {
		s.tail.next = ev
	} else {
		s.head = ev
	}
	s.tail = ev
}

// CancelEvent removes the first pending event matching dev and arg,
// folding its remaining delta into the following node so the rest of
// the list stays correctly ordered.
func (s *Scheduler) CancelEvent(dev any, arg int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cur := s.head; cur != nil; cur = cur.next {
		if cur.dev != dev || cur.arg != arg {
			continue
		}
		if cur.next != nil {
			cur.next.delta += cur.delta
			cur.next.prev = cur.prev
		} else {
			s.tail = cur.prev
		}
		if cur.prev != nil {
			cur.prev.next = cur.next
		} else {
			s.head = cur.next
		}
		return
	}
}

// Advance charges t cycles against the head of the list, firing every
// event whose delta is exhausted. Intended to be called once per
// retired instruction (or once per translated block, charging the
// block's guest instruction count) from the fiber's step loop.
func (s *Scheduler) Advance(t int) {
	s.mu.Lock()
	if s.head == nil {
		s.mu.Unlock()
		return
	}
	s.head.delta -= t

	var fired []*pending
	for s.head != nil && s.head.delta <= 0 {
		ev := s.head
		s.head = ev.next
		if s.head != nil {
			s.head.prev = nil
		} else {
			s.tail = nil
		}
		fired = append(fired, ev)
	}
	s.mu.Unlock()

	for _, ev := range fired {
		ev.cb(ev.arg)
	}
}
