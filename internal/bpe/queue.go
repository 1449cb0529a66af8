package bpe

import "container/heap"

type pairCount struct {
	pair  Pair
	count int
}

// pairQueue is a max-heap on count. Equal counts prefer the lower pair so
// training is deterministic.
type pairQueue []pairCount

func (q pairQueue) Len() int { return len(q) }

func (q pairQueue) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count > q[j].count
	}
	if q[i].pair.Left != q[j].pair.Left {
		return q[i].pair.Left < q[j].pair.Left
	}
	return q[i].pair.Right < q[j].pair.Right
}

func (q pairQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pairQueue) Push(x any) { *q = append(*q, x.(pairCount)) }

func (q *pairQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *pairQueue) init() { heap.Init(q) }

func (q *pairQueue) push(p Pair, count int) { heap.Push(q, pairCount{pair: p, count: count}) }

func (q *pairQueue) pop() pairCount { return heap.Pop(q).(pairCount) }
