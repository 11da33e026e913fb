package octree

import "container/list"

// loadedPointsFactor bounds the points kept by attached nodes to this multiple of the point budget.
const loadedPointsFactor = 2

// nodeLRU orders attached nodes from least to most recently visible.
type nodeLRU struct {
	order     *list.List
	elements  map[*OctreeNode]*list.Element
	numPoints int64
}

func newNodeLRU() *nodeLRU {
	return &nodeLRU{
		order:    list.New(),
		elements: make(map[*OctreeNode]*list.Element),
	}
}

func (l *nodeLRU) touch(node *OctreeNode) {
	if e, ok := l.elements[node]; ok {
		l.order.MoveToBack(e)
		return
	}
	l.elements[node] = l.order.PushBack(node)
	l.numPoints += node.numPoints
}

func (l *nodeLRU) remove(node *OctreeNode) {
	e, ok := l.elements[node]
	if !ok {
		return
	}
	l.order.Remove(e)
	delete(l.elements, node)
	l.numPoints -= node.numPoints
}

func (l *nodeLRU) oldest() *OctreeNode {
	if e := l.order.Front(); e != nil {
		return e.Value.(*OctreeNode)
	}
	return nil
}

func (l *nodeLRU) len() int {
	return l.order.Len()
}
