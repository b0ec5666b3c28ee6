package transfergraph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// contractedGraphMagic guards contracted_graph.bin the same way
// mmap.Magic guards the timetable directory (spec.md §7 BadTimetable):
// a router that opens a stale or foreign sidecar file should fail
// loudly at open time, not mysteriously at query time.
const contractedGraphMagic uint64 = 0x536f6c6172694348

var byteOrder = binary.LittleEndian

// WriteCH persists ch to path: the router's sidecar "contracted_graph.bin"
// (spec.md §9). Only what Query needs survives the round trip — node
// positions (for nearest-road-node resolution) and the up/down edge
// sets — not the pre-contraction base graph.
func WriteCH(path string, ch *CHGraph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, byteOrder, contractedGraphMagic); err != nil {
		return err
	}
	n := len(ch.base.Nodes)
	if err := binary.Write(w, byteOrder, uint32(n)); err != nil {
		return err
	}
	for _, node := range ch.base.Nodes {
		if err := binary.Write(w, byteOrder, math.Float64bits(node.Lat)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, math.Float64bits(node.Lon)); err != nil {
			return err
		}
	}
	for _, r := range ch.rank {
		if err := binary.Write(w, byteOrder, r); err != nil {
			return err
		}
	}
	if err := writeEdgeLists(w, ch.upOut); err != nil {
		return err
	}
	if err := writeEdgeLists(w, ch.upIn); err != nil {
		return err
	}
	return w.Flush()
}

func writeEdgeLists(w io.Writer, lists [][]Edge) error {
	for _, edges := range lists {
		if err := binary.Write(w, byteOrder, uint32(len(edges))); err != nil {
			return err
		}
		for _, e := range edges {
			if err := binary.Write(w, byteOrder, e.To); err != nil {
				return err
			}
			if err := binary.Write(w, byteOrder, math.Float64bits(e.Seconds)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readEdgeLists(r io.Reader, n int) ([][]Edge, error) {
	lists := make([][]Edge, n)
	for i := 0; i < n; i++ {
		var count uint32
		if err := binary.Read(r, byteOrder, &count); err != nil {
			return nil, err
		}
		edges := make([]Edge, count)
		for j := range edges {
			if err := binary.Read(r, byteOrder, &edges[j].To); err != nil {
				return nil, err
			}
			var bits uint64
			if err := binary.Read(r, byteOrder, &bits); err != nil {
				return nil, err
			}
			edges[j].Seconds = math.Float64frombits(bits)
		}
		lists[i] = edges
	}
	return lists, nil
}

// ReadCH reopens a contracted graph written by WriteCH.
func ReadCH(path string) (*CHGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic uint64
	if err := binary.Read(r, byteOrder, &magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != contractedGraphMagic {
		return nil, fmt.Errorf("%s: bad contracted graph magic", path)
	}

	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return nil, fmt.Errorf("reading node count: %w", err)
	}

	base := NewGraph()
	for i := uint32(0); i < n; i++ {
		var latBits, lonBits uint64
		if err := binary.Read(r, byteOrder, &latBits); err != nil {
			return nil, err
		}
		if err := binary.Read(r, byteOrder, &lonBits); err != nil {
			return nil, err
		}
		base.AddNode(math.Float64frombits(latBits), math.Float64frombits(lonBits))
	}

	rank := make([]int32, n)
	for i := range rank {
		if err := binary.Read(r, byteOrder, &rank[i]); err != nil {
			return nil, err
		}
	}

	upOut, err := readEdgeLists(r, int(n))
	if err != nil {
		return nil, fmt.Errorf("reading up-out edges: %w", err)
	}
	upIn, err := readEdgeLists(r, int(n))
	if err != nil {
		return nil, fmt.Errorf("reading up-in edges: %w", err)
	}

	return &CHGraph{base: base, rank: rank, upOut: upOut, upIn: upIn}, nil
}
