// Package ring implements the consistent-hash assignment engine: a pure
// function from a RingView and a check id to the set of nodes that own it.
package ring

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hamed0406/uptimechecker/internal/domain"
)

// virtualNodesPerNode is how many positions each live node occupies on the
// hash ring. More virtual nodes smooth out the bucket-to-node distribution
// at the cost of a larger ring to search.
const virtualNodesPerNode = 64

// Bucket returns H(checkID) mod B, the check's primary bucket on the ring.
func Bucket(checkID uuid.UUID, bucketsCount int32) int32 {
	if bucketsCount <= 0 {
		return 0
	}
	h := xxhash.Sum64(checkID[:])
	return int32(h % uint64(bucketsCount))
}

// ringPoint is one virtual node's fixed position on the hash ring.
type ringPoint struct {
	pos     uint64
	nodeIdx int
}

// primaryOwner returns the index into nodes of the node that owns bucket,
// via ring-successor assignment: every live node occupies virtualNodesPerNode
// fixed positions (a pure function of its own id, never of its neighbors or
// its index in nodes), and a bucket belongs to the first node position at or
// after the bucket's own position, wrapping around the ring.
//
// Unlike bucket mod N, a node's positions don't move when another node
// joins or leaves, so removing one node only reassigns the buckets that
// node itself owned -- roughly 1/N of them -- instead of reshuffling
// every bucket's owner.
func primaryOwner(nodes []uuid.UUID, bucket int32) int {
	points := make([]ringPoint, 0, len(nodes)*virtualNodesPerNode)
	for i, id := range nodes {
		for v := 0; v < virtualNodesPerNode; v++ {
			points = append(points, ringPoint{pos: nodePosition(id, v), nodeIdx: i})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].pos < points[j].pos })

	target := bucketPosition(bucket)
	i := sort.Search(len(points), func(i int) bool { return points[i].pos >= target })
	if i == len(points) {
		i = 0
	}
	return points[i].nodeIdx
}

// nodePosition hashes (nodeID, vnode) to a ring position.
func nodePosition(nodeID uuid.UUID, vnode int) uint64 {
	var buf [24]byte
	copy(buf[:16], nodeID[:])
	binary.LittleEndian.PutUint64(buf[16:], uint64(vnode))
	return xxhash.Sum64(buf[:])
}

// bucketPosition hashes a bucket number to the same ring space as
// nodePosition, independent of how many buckets exist in total.
func bucketPosition(bucket int32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(bucket))
	return xxhash.Sum64(buf[:])
}

// Assign returns the set of node ids that own checkID under view, following
// a stable ring-successor primary owner plus R-1 Beta-biased replica draws,
// rejecting positions already chosen.
func Assign(view domain.RingView, checkID uuid.UUID) []uuid.UUID {
	n := len(view.LiveNodes)
	if n == 0 {
		return nil
	}
	r := int(view.ReplicationFactor)
	if r > n {
		r = n
	}
	if r < 1 {
		r = 1
	}

	b := Bucket(checkID, view.BucketsCount)
	p0 := primaryOwner(view.LiveNodes, b)

	chosen := make([]int, 0, r)
	taken := make(map[int]bool, r)
	chosen = append(chosen, p0)
	taken[p0] = true

	for rep := 1; rep < r; rep++ {
		pos := betaReplicaPosition(checkID, rep, n, taken)
		chosen = append(chosen, pos)
		taken[pos] = true
	}

	out := make([]uuid.UUID, 0, len(chosen))
	for _, p := range chosen {
		out = append(out, view.LiveNodes[p])
	}
	return out
}

// betaReplicaPosition draws a ring position in [0, n) biased by a
// Beta(2,2) distribution seeded deterministically by (checkID, replica),
// rejecting positions already taken (the primary's included). The draw does
// not depend on where the primary sits; it is a pure function of its inputs.
func betaReplicaPosition(checkID uuid.UUID, replica, n int, taken map[int]bool) int {
	src := seededSource(checkID, replica)
	beta := distuv.Beta{Alpha: 2, Beta: 2, Src: src}

	for attempt := 0; attempt < 64; attempt++ {
		draw := beta.Rand()
		pos := int(draw * float64(n))
		if pos >= n {
			pos = n - 1
		}
		if pos < 0 {
			pos = 0
		}
		if !taken[pos] {
			return pos
		}
	}
	// Fallback: deterministic linear scan from the draw, guaranteed to find
	// a free slot because len(taken) < n whenever this is reached.
	start := int(beta.Rand() * float64(n))
	for i := 0; i < n; i++ {
		pos := (start + i) % n
		if !taken[pos] {
			return pos
		}
	}
	return 0
}

// seededSource builds a rand.Source that is a pure function of
// (checkID, replica), so assignment is reproducible across nodes and runs.
func seededSource(checkID uuid.UUID, replica int) rand.Source {
	var buf [24]byte
	copy(buf[:16], checkID[:])
	binary.LittleEndian.PutUint64(buf[16:], uint64(replica))
	h := xxhash.Sum64(buf[:])
	src := rand.NewSource(h)
	return src
}
