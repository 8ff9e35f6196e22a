// Package plist provides intrusive doubly-linked list primitives shared by
// the replacement engine's resident and ghost queues.
//
// Unlike container/list, nodes carry their own prev/next pointers, so
// removing a known node is O(1) without a separate element wrapper.
package plist

// Linked is implemented by pointer types that can be stored in a List.
// P is the node's own pointer type (e.g. *Page), so a node's links
// point directly at sibling nodes with no boxing.
type Linked[P any] interface {
	comparable
	setPrev(P)
	setNext(P)
	getPrev() P
	getNext() P
}

// List is an intrusive doubly-linked list. The zero value is an empty,
// ready-to-use list. Head is the most-recently-touched element; tail is
// the eviction candidate.
type List[P Linked[P]] struct {
	head, tail P
	size       int
}

// Len returns the number of elements currently linked.
func (l *List[P]) Len() int { return l.size }

// Front returns the head element, or the zero value if empty.
func (l *List[P]) Front() P { return l.head }

// Back returns the tail element, or the zero value if empty.
func (l *List[P]) Back() P { return l.tail }

// PushFront links n at the head of the list. n must not already be linked
// into this or any other List.
func (l *List[P]) PushFront(n P) {
	var zero P
	n.setPrev(zero)
	n.setNext(l.head)
	if l.head != zero {
		l.head.setPrev(n)
	}
	l.head = n
	if l.tail == zero {
		l.tail = n
	}
	l.size++
}

// Remove unlinks n, which must currently be a member of this list.
func (l *List[P]) Remove(n P) {
	var zero P
	prev, next := n.getPrev(), n.getNext()
	if prev != zero {
		prev.setNext(next)
	} else {
		l.head = next
	}
	if next != zero {
		next.setPrev(prev)
	} else {
		l.tail = prev
	}
	n.setPrev(zero)
	n.setNext(zero)
	l.size--
}

// MoveToFront relinks n, already a member of this list, to the head.
func (l *List[P]) MoveToFront(n P) {
	if l.head == n {
		return
	}
	l.Remove(n)
	l.PushFront(n)
}

// PopBack unlinks and returns the tail element, or the zero value if the
// list is empty.
func (l *List[P]) PopBack() P {
	var zero P
	tail := l.tail
	if tail == zero {
		return zero
	}
	l.Remove(tail)
	return tail
}
