package commtable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/rtable"
)

func TestPartnerPairsEveryPETOnce(t *testing.T) {
	for size := 1; size <= 9; size++ {
		met := make(map[[2]int]int)
		for r := 0; r < Rounds(size); r++ {
			for me := 0; me < size; me++ {
				p := Partner(me, r, size)
				if p < 0 {
					continue
				}
				require.Equal(t, me, Partner(p, r, size), "size %d round %d: partner must be symmetric", size, r)
				if me < p {
					met[[2]int{me, p}]++
				}
			}
		}
		for a := 0; a < size; a++ {
			for b := a + 1; b < size; b++ {
				assert.Equal(t, 1, met[[2]int{a, b}], "size %d: pair %d,%d", size, a, b)
			}
		}
	}
}

func pkt(peer, off, n int) rtable.XPacket {
	return rtable.XPacket{Peer: peer, Spans: []rtable.Span{{Offset: off, Len: n}}, Items: n}
}

func TestBuildHaloSchedule(t *testing.T) {
	// PET 1 of a 4-PET 1-D halo: sends its edge cells to 0 and 2 and
	// receives one cell from each.
	send := []rtable.XPacket{pkt(0, 1, 1), pkt(2, 4, 1)}
	recv := []rtable.XPacket{pkt(0, 0, 1), pkt(2, 5, 1)}

	ct, err := Build(1, 4, 8, send, recv)
	require.NoError(t, err)
	assert.Empty(t, ct.Local)
	require.Len(t, ct.Steps, 2)
	for _, s := range ct.Steps {
		assert.Equal(t, 1, Partner(s.Peer, s.Round, 4))
		assert.Equal(t, s.Peer > 1, s.SendFirst)
	}
	assert.Equal(t, 2, ct.SendItems())
	assert.Equal(t, 2, ct.RecvItems())
	assert.Equal(t, 5, ct.SendExtent())
	assert.Equal(t, 6, ct.RecvExtent())
	assert.Equal(t, 2, ct.SumMaxPacketsPerPET())
	assert.Equal(t, 2, ct.SumMaxRegionsPerPacket())
}

func TestBuildLocalCopies(t *testing.T) {
	ct, err := Build(0, 1, 4, []rtable.XPacket{pkt(0, 0, 3)}, []rtable.XPacket{pkt(0, 2, 3)})
	require.NoError(t, err)
	require.Len(t, ct.Local, 1)
	assert.Empty(t, ct.Steps)
	assert.Equal(t, 3, ct.RecvItems())

	_, err = Build(0, 1, 4, []rtable.XPacket{pkt(0, 0, 3)}, []rtable.XPacket{pkt(0, 0, 2)})
	require.Error(t, err)
	_, err = Build(0, 1, 4, []rtable.XPacket{pkt(0, 0, 3)}, nil)
	require.Error(t, err)
}

func TestBuildRejectsBadPeers(t *testing.T) {
	_, err := Build(0, 2, 8, []rtable.XPacket{pkt(5, 0, 1)}, nil)
	require.Error(t, err)
	_, err = Build(3, 2, 8, nil, nil)
	require.Error(t, err)
	_, err = Build(0, 2, 0, nil, nil)
	require.Error(t, err)
}

func TestPrint(t *testing.T) {
	ct, err := Build(0, 2, 8, []rtable.XPacket{pkt(1, 0, 2)}, []rtable.XPacket{pkt(1, 2, 1)})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, ct.Print(&buf))
	assert.Equal(t, "pet 0/2 elem=8B rounds=1\n  round 0 peer 1 send-first send=1/16B recv=1/8B\n", buf.String())
}
