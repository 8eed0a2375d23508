// Package stream duplicates one output stream into independently paced
// consumers.
//
// A Tee owns a single producer goroutine that reads the source and appends
// each chunk to a shared arena. Every Consumer keeps its own cursor into the
// arena, so a slow consumer only delays itself: the producer never blocks on
// a consumer, and a consumer that goes away releases its backlog without
// disturbing the others.
//
// Chunks are copied once and shared read-only. The arena drops a chunk as
// soon as every live consumer has read past it.
//
// A consumer that may sit idle for long stretches can bound its backlog with
// Consumer.SetLimit. Past the limit its oldest unread chunks are skipped, so
// an unread branch never grows without bound.
//
// Cancelling Consumer.Next through its context never loses data. The chunk
// stays at the cursor and the next call returns it, which is what lets the
// shell controller abandon a stalled wait and resume reading later.
//
// Example Usage:
//
//	display, internal := stream.Split(ptmx)
//	go func() {
//		for {
//			chunk, err := display.Next(ctx)
//			if err != nil {
//				return
//			}
//			term.Write(chunk)
//		}
//	}()
package stream
