package database

import (
	"container/list"
)

// evictionQueue is the FIFO-with-recycling order of addresses. The front of the list is
// the oldest, most idle address - the next shearing candidate - and the back is the
// freshest. The queue owns its nodes; Associations are referenced by address key only,
// so nothing here outlives a removal.
type evictionQueue struct {
	order *list.List               // of string (address)
	nodes map[string]*list.Element // address -> its node
}

func newEvictionQueue() *evictionQueue {
	return &evictionQueue{
		order: list.New(),
		nodes: make(map[string]*list.Element),
	}
}

// touch moves the node for address to the back of the queue. An unknown address is
// inserted at the back, which is what both a first observation and a recycle need.
func (t *evictionQueue) touch(address string) {
	if elem, ok := t.nodes[address]; ok {
		t.order.MoveToBack(elem)
		return
	}
	t.nodes[address] = t.order.PushBack(address)
}

// shear removes and returns up to n addresses from the front of the queue. The second
// return is the shortfall: how many fewer than n were available.
func (t *evictionQueue) shear(n int) ([]string, int) {
	sheared := make([]string, 0, n)
	for len(sheared) < n {
		front := t.order.Front()
		if front == nil {
			break
		}
		address := t.order.Remove(front).(string)
		delete(t.nodes, address)
		sheared = append(sheared, address)
	}

	return sheared, n - len(sheared)
}

// remove deletes the node for address if present.
func (t *evictionQueue) remove(address string) {
	if elem, ok := t.nodes[address]; ok {
		t.order.Remove(elem)
		delete(t.nodes, address)
	}
}

func (t *evictionQueue) contains(address string) bool {
	_, ok := t.nodes[address]
	return ok
}

func (t *evictionQueue) len() int {
	return t.order.Len()
}

// slice returns up to n addresses reading from the head (oldest first) or from the tail
// (freshest first). The queue is not disturbed.
func (t *evictionQueue) slice(fromHead bool, n int) []string {
	ar := make([]string, 0, n)
	if fromHead {
		for elem := t.order.Front(); elem != nil && len(ar) < n; elem = elem.Next() {
			ar = append(ar, elem.Value.(string))
		}
	} else {
		for elem := t.order.Back(); elem != nil && len(ar) < n; elem = elem.Prev() {
			ar = append(ar, elem.Value.(string))
		}
	}

	return ar
}
