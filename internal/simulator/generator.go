package simulator

import (
	"strconv"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/simon-relay/internal/domain/model"
)

// Generator produces players and their scores.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator. Equal non-zero seeds give equal output.
func NewGenerator(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Players returns n distinct usernames.
func (g *Generator) Players(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		name := g.faker.Username()
		if _, dup := seen[name]; dup {
			name += strconv.Itoa(len(out))
			if _, dup := seen[name]; dup {
				continue
			}
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Scores returns events payloads spread round-robin over players. Simon
// scores are whole rounds, so values are integers in [0, maxScore].
func (g *Generator) Scores(players []string, events, maxScore int) []model.ScorePayload {
	out := make([]model.ScorePayload, events)
	for i := range out {
		out[i] = model.ScorePayload{
			Username: players[i%len(players)],
			Score:    float64(g.faker.Number(0, maxScore)),
		}
	}
	return out
}
