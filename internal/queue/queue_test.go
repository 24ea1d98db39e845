/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package queue_test

import (
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/internal/queue"
)

// fakeConn returns one end of an in-memory net.Conn pipe; tests never read
// or write through it, they only need a distinct net.Conn value to push
// through the queue.
func fakeConn() net.Conn {
	c, other := net.Pipe()
	_ = other.Close()
	return c
}

var _ = Describe("Bounded connection queue", func() {
	Describe("capacity", func() {
		It("reports the capacity it was built with", func() {
			q := queue.New(4)
			Expect(q.Cap()).To(Equal(4))
			Expect(q.Len()).To(Equal(0))
		})
	})

	Describe("TryEnqueue", func() {
		It("accepts connections up to capacity then rejects", func() {
			q := queue.New(2)
			Expect(q.TryEnqueue(fakeConn())).To(BeTrue())
			Expect(q.TryEnqueue(fakeConn())).To(BeTrue())
			Expect(q.TryEnqueue(fakeConn())).To(BeFalse())
			Expect(q.Len()).To(Equal(2))
		})

		It("rejects once shut down", func() {
			q := queue.New(2)
			q.Shutdown()
			Expect(q.TryEnqueue(fakeConn())).To(BeFalse())
		})
	})

	Describe("Dequeue", func() {
		It("returns connections in FIFO order", func() {
			q := queue.New(4)
			first, second := fakeConn(), fakeConn()
			Expect(q.TryEnqueue(first)).To(BeTrue())
			Expect(q.TryEnqueue(second)).To(BeTrue())

			ctx := context.Background()
			got1, err := q.Dequeue(ctx)
			Expect(err).To(BeNil())
			Expect(got1).To(Equal(first))

			got2, err := q.Dequeue(ctx)
			Expect(err).To(BeNil())
			Expect(got2).To(Equal(second))
		})

		It("unblocks every waiter when the queue is shut down", func() {
			q := queue.New(1)
			var wg sync.WaitGroup
			errs := make([]error, 5)

			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := q.Dequeue(context.Background())
					errs[idx] = err
				}(i)
			}

			time.Sleep(20 * time.Millisecond)
			q.Shutdown()
			wg.Wait()

			for _, err := range errs {
				Expect(err).ToNot(BeNil())
			}
		})

		It("respects the caller's context without canceling the queue", func() {
			q := queue.New(1)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			_, err := q.Dequeue(ctx)
			Expect(err).ToNot(BeNil())

			Expect(q.TryEnqueue(fakeConn())).To(BeTrue())
		})
	})

	Describe("concurrent producers and consumers", func() {
		It("delivers every enqueued connection exactly once", func() {
			q := queue.New(8)
			const total = 50

			var produced sync.WaitGroup
			for i := 0; i < total; i++ {
				produced.Add(1)
				go func() {
					defer produced.Done()
					defer GinkgoRecover()
					Expect(q.Enqueue(fakeConn())).To(BeNil())
				}()
			}

			received := make(chan net.Conn, total)
			var consumed sync.WaitGroup
			for i := 0; i < total; i++ {
				consumed.Add(1)
				go func() {
					defer consumed.Done()
					defer GinkgoRecover()
					c, err := q.Dequeue(context.Background())
					Expect(err).To(BeNil())
					received <- c
				}()
			}

			produced.Wait()
			consumed.Wait()
			close(received)

			count := 0
			for range received {
				count++
			}
			Expect(count).To(Equal(total))
		})
	})

	Describe("Drain", func() {
		It("returns every still-queued connection for the caller to close", func() {
			q := queue.New(4)
			Expect(q.TryEnqueue(fakeConn())).To(BeTrue())
			Expect(q.TryEnqueue(fakeConn())).To(BeTrue())

			drained := q.Drain()
			Expect(drained).To(HaveLen(2))
			Expect(q.Len()).To(Equal(0))
		})
	})
})
