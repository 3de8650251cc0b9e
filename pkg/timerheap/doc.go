// Package timerheap is a reference TimerSource implementation for
// pkg/timerpool, backed by container/heap the same way the rest of this
// codebase reaches for a heap when it needs ordered retrieval of the
// next-due item.
//
// Heap is a concrete timer store: Add schedules a callback at a deadline and
// returns a Handle that can cancel it; Check/Flush/ConsumeKick implement
// timerpool.TimerSource so a *Heap can be passed directly to timerpool.New.
package timerheap
