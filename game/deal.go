package game

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// HandSize is the number of cards dealt to each player.
const HandSize = 5

// Dealer draws hands from a catalog.
//
// Hands are deterministic: the cards are drawn without replacement by a PCG
// generator seeded with the FNV-1a hash of "<matchID>/<playerID>", so the
// same match and player always receive the same hand. Two players in one
// match may hold copies of the same card.
type Dealer struct {
	catalog *Catalog
	size    int
}

// NewDealer returns a dealer that deals HandSize cards from catalog.
func NewDealer(catalog *Catalog) (*Dealer, error) {
	if catalog.Len() < HandSize {
		return nil, fmt.Errorf("catalog has %d cards, need at least %d", catalog.Len(), HandSize)
	}
	return &Dealer{catalog: catalog, size: HandSize}, nil
}

// Deal returns the hand for playerID in matchID.
func (d *Dealer) Deal(matchID, playerID string) []int {
	h := fnv.New64a()
	h.Write([]byte(matchID))
	h.Write([]byte{'/'})
	h.Write([]byte(playerID))
	sum := h.Sum64()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sum)
	r := rand.New(rand.NewPCG(sum, binary.BigEndian.Uint64(buf[:])))

	ids := d.catalog.IDs()
	for i := 0; i < d.size; i++ {
		j := i + r.IntN(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:d.size:d.size]
}
