package pool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v6"
)

// LocalPartGenerator produces mailbox local-parts for new pool rules.
type LocalPartGenerator interface {
	LocalPart() string
}

// WordGenerator builds local-parts of the form color-animal-NN.
type WordGenerator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewWordGenerator seeds the generator; a zero seed picks a random one.
func NewWordGenerator(seed int64) *WordGenerator {
	return &WordGenerator{faker: gofakeit.New(seed)}
}

// LocalPart returns a lower-case, dash-separated local-part.
func (g *WordGenerator) LocalPart() string {
	g.mu.Lock()
	color := g.faker.SafeColor()
	animal := g.faker.Animal()
	n := g.faker.Number(1, 99)
	g.mu.Unlock()

	return sanitize(fmt.Sprintf("%s-%s-%d", color, animal, n))
}

// sanitize lower-cases s and keeps letters, digits and single dashes.
func sanitize(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Address joins a local-part and a domain.
func Address(localPart, domain string) string {
	return localPart + "@" + domain
}
